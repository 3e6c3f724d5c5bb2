// Package config loads the inputs the core consumes: gateway endpoint,
// per-operation timeouts, rate ceiling, aggregation batch size and symbol
// rules. Everything here is an input supplied by the operator, never derived.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Tradegate TradegateConfig `yaml:"tradegate"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Timeouts  TimeoutsConfig  `yaml:"timeouts"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Aggregate AggregateConfig `yaml:"aggregate"`
	Symbols   SymbolsConfig   `yaml:"symbols"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Dashboard DashboardConfig `yaml:"dashboard"`
}

type TradegateConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type GatewayConfig struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	ClientID    int           `yaml:"client_id"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	KeepAlive   time.Duration `yaml:"keep_alive"`
}

// TimeoutsConfig holds the per-operation deadlines, all relative to
// issuance. SnapshotGrace is the fixed period a streaming subscription
// accumulates before returning its initial snapshot.
type TimeoutsConfig struct {
	Positions      time.Duration `yaml:"positions"`
	OpenOrders     time.Duration `yaml:"open_orders"`
	Executions     time.Duration `yaml:"executions"`
	Quote          time.Duration `yaml:"quote"`
	AccountSummary time.Duration `yaml:"account_summary"`
	Order          time.Duration `yaml:"order"`
	SnapshotGrace  time.Duration `yaml:"snapshot_grace"`
}

type RateLimitConfig struct {
	MaxPerSecond int `yaml:"max_per_second"`
}

type AggregateConfig struct {
	BatchSize int `yaml:"batch_size"`
}

type SymbolsConfig struct {
	Pattern   string   `yaml:"pattern"`
	MaxLength int      `yaml:"max_length"`
	Allowed   []string `yaml:"allowed"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type MetricsConfig struct {
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
}

type DashboardConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	LogSize int    `yaml:"log_size"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&config)
	applyEnvOverrides(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &config, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = 4002
	}
	if cfg.Gateway.DialTimeout == 0 {
		cfg.Gateway.DialTimeout = 10 * time.Second
	}
	if cfg.Gateway.KeepAlive == 0 {
		cfg.Gateway.KeepAlive = 20 * time.Second
	}
	t := &cfg.Timeouts
	for _, d := range []*time.Duration{&t.Positions, &t.OpenOrders, &t.Executions, &t.AccountSummary} {
		if *d == 0 {
			*d = 15 * time.Second
		}
	}
	if t.Quote == 0 {
		t.Quote = 5 * time.Second
	}
	if t.Order == 0 {
		t.Order = 10 * time.Second
	}
	if t.SnapshotGrace == 0 {
		t.SnapshotGrace = 2 * time.Second
	}
	if cfg.RateLimit.MaxPerSecond == 0 {
		cfg.RateLimit.MaxPerSecond = 40
	}
	if cfg.Aggregate.BatchSize == 0 {
		cfg.Aggregate.BatchSize = 10
	}
	if cfg.Symbols.MaxLength == 0 {
		cfg.Symbols.MaxLength = 21
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Dashboard.Addr == "" {
		cfg.Dashboard.Addr = "127.0.0.1:8322"
	}
	if cfg.Dashboard.LogSize == 0 {
		cfg.Dashboard.LogSize = 200
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GATEWAY_HOST"); v != "" {
		cfg.Gateway.Host = strings.TrimSpace(v)
	}
	if v := os.Getenv("GATEWAY_PORT"); v != "" {
		if p, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.Gateway.Port = p
		}
	}
	if v := os.Getenv("GATEWAY_CLIENT_ID"); v != "" {
		if id, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.Gateway.ClientID = id
		}
	}
	if v := os.Getenv("AWS_REGION"); v != "" && cfg.Metrics.CloudWatch.Enabled {
		cfg.Metrics.CloudWatch.Region = strings.TrimSpace(v)
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Tradegate.Name == "" {
		return fmt.Errorf("tradegate.name is required")
	}
	if cfg.Tradegate.Version == "" {
		return fmt.Errorf("tradegate.version is required")
	}
	if cfg.Gateway.Host == "" {
		return fmt.Errorf("gateway.host is required")
	}
	if cfg.Gateway.Port <= 0 || cfg.Gateway.Port > 65535 {
		return fmt.Errorf("gateway.port %d is out of range", cfg.Gateway.Port)
	}
	if cfg.RateLimit.MaxPerSecond <= 0 {
		return fmt.Errorf("rate_limit.max_per_second must be greater than 0")
	}
	if cfg.Aggregate.BatchSize <= 0 {
		return fmt.Errorf("aggregate.batch_size must be greater than 0")
	}
	if IsProductionLike(AppEnvironment()) && cfg.Gateway.ClientID == 0 {
		return fmt.Errorf("gateway.client_id is required in %s", AppEnvironment())
	}
	return nil
}
