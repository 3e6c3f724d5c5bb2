package config

import (
	"os"
	"testing"
	"time"
)

// writeTempConfig creates a minimal configuration file required for LoadConfig
// and returns its path.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp("", "cfg-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}
	return f.Name()
}

const minimalConfig = `tradegate:
  name: "TestApp"
  version: "1.0"
gateway:
  host: "127.0.0.1"
`

func TestLoadConfig(t *testing.T) {
	path := writeTempConfig(t, minimalConfig)
	defer os.Remove(path)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Tradegate.Name != "TestApp" {
		t.Errorf("unexpected name: %s", cfg.Tradegate.Name)
	}
	if cfg.Gateway.Host != "127.0.0.1" {
		t.Errorf("unexpected host: %s", cfg.Gateway.Host)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeTempConfig(t, minimalConfig)
	defer os.Remove(path)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Gateway.Port != 4002 {
		t.Errorf("default port = %d, want 4002", cfg.Gateway.Port)
	}
	if cfg.Timeouts.Quote != 5*time.Second {
		t.Errorf("default quote timeout = %v, want 5s", cfg.Timeouts.Quote)
	}
	if cfg.Timeouts.Positions != 15*time.Second {
		t.Errorf("default positions timeout = %v, want 15s", cfg.Timeouts.Positions)
	}
	if cfg.Timeouts.SnapshotGrace != 2*time.Second {
		t.Errorf("default snapshot grace = %v, want 2s", cfg.Timeouts.SnapshotGrace)
	}
	if cfg.RateLimit.MaxPerSecond != 40 {
		t.Errorf("default rate ceiling = %d, want 40", cfg.RateLimit.MaxPerSecond)
	}
	if cfg.Aggregate.BatchSize != 10 {
		t.Errorf("default batch size = %d, want 10", cfg.Aggregate.BatchSize)
	}
	if cfg.Symbols.MaxLength != 21 {
		t.Errorf("default symbol max length = %d, want 21", cfg.Symbols.MaxLength)
	}
}

func TestLoadConfigMissingRequired(t *testing.T) {
	path := writeTempConfig(t, "tradegate:\n  name: \"x\"\n")
	defer os.Remove(path)

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected validation error for missing fields")
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, minimalConfig)
	defer os.Remove(path)

	t.Setenv("GATEWAY_HOST", "gw.internal")
	t.Setenv("GATEWAY_PORT", "4001")
	t.Setenv("GATEWAY_CLIENT_ID", "42")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Gateway.Host != "gw.internal" {
		t.Errorf("host override = %s, want gw.internal", cfg.Gateway.Host)
	}
	if cfg.Gateway.Port != 4001 {
		t.Errorf("port override = %d, want 4001", cfg.Gateway.Port)
	}
	if cfg.Gateway.ClientID != 42 {
		t.Errorf("client id override = %d, want 42", cfg.Gateway.ClientID)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig("/does/not/exist.yml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestAppEnvironment(t *testing.T) {
	cases := []struct {
		env  string
		want string
	}{
		{"", "development"},
		{"prod", "production"},
		{"production", "production"},
		{"stag", "staging"},
		{"staging", "staging"},
	}
	for _, c := range cases {
		t.Setenv("APP_ENV", c.env)
		if got := AppEnvironment(); got != c.want {
			t.Errorf("AppEnvironment(%q) = %q, want %q", c.env, got, c.want)
		}
	}
}
