package symbols

import (
	"testing"

	"tradegate/config"
)

func TestValidateDefaultRules(t *testing.T) {
	v, err := NewValidator(config.SymbolsConfig{MaxLength: 21})
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}

	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"aapl", "AAPL", true},
		{" spy ", "SPY", true},
		{"BRK B", "BRK B", true},
		{"AAPL  240621C00190000", "AAPL  240621C00190000", true},
		{"", "", false},
		{"   ", "", false},
		{"9LIVES", "", false},
		{"AAPL;DROP", "", false},
		{"AVERYLONGSYMBOLNAMEXYZ", "", false},
	}
	for _, c := range cases {
		got, err := v.Validate(c.in)
		if c.ok && err != nil {
			t.Errorf("Validate(%q): unexpected error %v", c.in, err)
			continue
		}
		if !c.ok && err == nil {
			t.Errorf("Validate(%q): expected error, got %q", c.in, got)
			continue
		}
		if c.ok && got != c.want {
			t.Errorf("Validate(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestValidateAllowedList(t *testing.T) {
	v, err := NewValidator(config.SymbolsConfig{Allowed: []string{"aapl", "SPY"}})
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	if _, err := v.Validate("AAPL"); err != nil {
		t.Errorf("AAPL should be allowed: %v", err)
	}
	if _, err := v.Validate("spy"); err != nil {
		t.Errorf("spy should normalize into the allowed list: %v", err)
	}
	if _, err := v.Validate("TSLA"); err == nil {
		t.Error("TSLA should be rejected by the allowed list")
	}
}

func TestNewValidatorRejectsBadPattern(t *testing.T) {
	if _, err := NewValidator(config.SymbolsConfig{Pattern: "["}); err == nil {
		t.Fatal("expected error for invalid pattern")
	}
}
