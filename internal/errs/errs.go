// Package errs defines the error taxonomy every operation resolves into.
// Raw transport and gateway failures are classified here before they reach
// a caller; nothing above this package inspects raw error codes.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrRateLimited is returned when the outbound admission window is full.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrTimeout is returned when an operation's deadline passes with no
	// usable partial result.
	ErrTimeout = errors.New("operation timed out")

	// ErrConnLost is propagated to every pending operation when the gateway
	// session drops, superseding individual timeouts.
	ErrConnLost = errors.New("gateway connection lost")

	// ErrNotFound is returned when the gateway reports that a referenced
	// order, position or instrument does not exist.
	ErrNotFound = errors.New("not found")
)

// ConnectionError wraps a transport-level failure establishing or using the
// gateway session.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("connection error during %s", e.Op)
	}
	return fmt.Sprintf("connection error during %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Connection wraps err into a ConnectionError for the given operation.
func Connection(op string, err error) error {
	return &ConnectionError{Op: op, Err: err}
}

// GatewayError is an in-band error event from the gateway that does not map
// to a more specific taxonomy entry.
type GatewayError struct {
	Code int
	Msg  string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway error %d: %s", e.Code, e.Msg)
}

// Gateway error code bands. The gateway reuses its error channel for
// informational notices, so classification is by code, never by message text.
const (
	// CodeNoSecurityDef is sent when a requested instrument cannot be
	// resolved to a contract.
	CodeNoSecurityDef = 200

	// CodeOrderNotFound is sent in response to operations referencing an
	// order id the gateway does not know.
	CodeOrderNotFound = 10147

	// Informational notices occupy [2100, 2200); they never terminate an
	// operation.
	warningBandLow  = 2100
	warningBandHigh = 2200
)

// IsWarning reports whether a gateway error code is an informational notice
// rather than a failure.
func IsWarning(code int) bool {
	return code >= warningBandLow && code < warningBandHigh
}

// Classify converts a gateway error event into the taxonomy. Warning codes
// must be filtered with IsWarning before calling.
func Classify(code int, msg string) error {
	switch code {
	case CodeNoSecurityDef, CodeOrderNotFound:
		return fmt.Errorf("%w: gateway error %d: %s", ErrNotFound, code, msg)
	}
	return &GatewayError{Code: code, Msg: msg}
}
