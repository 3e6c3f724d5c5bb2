// Package symbols applies the configured symbol rules. Full argument
// validation lives upstream in the tool layer; this only pre-checks what the
// core needs before spending a correlation id and a rate-window slot on a
// symbol.
package symbols

import (
	"fmt"
	"regexp"
	"strings"

	"tradegate/config"
)

// defaultPattern accepts exchange-style symbols including option locals
// ("AAPL", "BRK B", "AAPL  240621C00190000").
const defaultPattern = `^[A-Z][A-Z0-9 .]*$`

// Validator checks symbols against the configured rules.
type Validator struct {
	re      *regexp.Regexp
	max     int
	allowed map[string]struct{}
}

// NewValidator compiles the configured rules.
func NewValidator(cfg config.SymbolsConfig) (*Validator, error) {
	pattern := cfg.Pattern
	if pattern == "" {
		pattern = defaultPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("symbols.pattern: %w", err)
	}
	v := &Validator{re: re, max: cfg.MaxLength}
	if len(cfg.Allowed) > 0 {
		v.allowed = make(map[string]struct{}, len(cfg.Allowed))
		for _, s := range cfg.Allowed {
			v.allowed[Normalize(s)] = struct{}{}
		}
	}
	return v, nil
}

// Normalize uppercases and trims a symbol.
func Normalize(sym string) string {
	return strings.ToUpper(strings.TrimSpace(sym))
}

// Validate normalizes sym and returns it, or an error when it violates the
// configured rules.
func (v *Validator) Validate(sym string) (string, error) {
	sym = Normalize(sym)
	if sym == "" {
		return "", fmt.Errorf("empty symbol")
	}
	if v.max > 0 && len(sym) > v.max {
		return "", fmt.Errorf("symbol %q exceeds max length %d", sym, v.max)
	}
	if !v.re.MatchString(sym) {
		return "", fmt.Errorf("symbol %q does not match allowed pattern", sym)
	}
	if v.allowed != nil {
		if _, ok := v.allowed[sym]; !ok {
			return "", fmt.Errorf("symbol %q is not in the allowed list", sym)
		}
	}
	return sym, nil
}
