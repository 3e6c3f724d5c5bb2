// Package correlate is the correlation engine: it tracks one pending-request
// record per issued operation, feeds asynchronously arriving events into the
// record's accumulator, and resolves the record exactly once via terminal
// event, timeout, or connection loss — with identical cleanup on every path.
package correlate

import (
	"time"

	"tradegate/internal/gateway"
)

// State is the lifecycle of a pending request. All transitions go through
// StateResolving and every final state is terminal.
type State int32

const (
	StatePending State = iota
	StateResolving
	StateResolved
	StateTimedOut
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateResolving:
		return "resolving"
	case StateResolved:
		return "resolved"
	case StateTimedOut:
		return "timedOut"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Result is the successful outcome of an operation. Partial marks a deadline
// expiry that still produced usable data (a success, not an error).
type Result struct {
	Value   any
	Partial bool
}

// Accumulator collects the so-far result of one operation. Ingest is called
// for every bound event in transport order; Terminal is consulted after each
// Ingest. Accumulators run inside the session lock and must not block.
type Accumulator interface {
	Ingest(ev gateway.Event)
	Terminal(ev gateway.Event) bool
	Size() int
	Value() any
}

// Spec declares an operation kind: which events it binds, when it is done,
// how long it may run, and whether expiry with data is still a success.
// Specs are declared once per kind, not hand-coded per call site.
type Spec struct {
	// Kind is both the request kind sent to the gateway and the metrics
	// label for the operation.
	Kind string

	// Events are the event types bound to the operation's id. The error
	// event type is always bound in addition.
	Events []string

	// Timeout is relative to issuance, measured on the monotonic clock.
	Timeout time.Duration

	// AllowPartial resolves expiry as a success when the accumulator holds
	// anything.
	AllowPartial bool

	// CancelKind, when set, is sent to the gateway at resolution to tear
	// down server-side state (except on the connection-loss path, where
	// there is no server to tell).
	CancelKind string

	// NewAccumulator builds the kind-specific accumulator.
	NewAccumulator func() Accumulator
}

func (s Spec) boundEvents() []string {
	for _, ev := range s.Events {
		if ev == gateway.EvtError {
			return s.Events
		}
	}
	return append(append([]string(nil), s.Events...), gateway.EvtError)
}

// Rows accumulates snapshot-list events in arrival order, converting each
// row as it arrives. The end-marker event is terminal and is not a row.
type Rows[T any] struct {
	end     string
	convert func(gateway.Event) T
	rows    []T
}

// NewRows returns a snapshot-list accumulator terminated by the end event.
func NewRows[T any](end string, convert func(gateway.Event) T) *Rows[T] {
	return &Rows[T]{end: end, convert: convert}
}

func (r *Rows[T]) Ingest(ev gateway.Event) {
	if ev.Type == r.end {
		return
	}
	r.rows = append(r.rows, r.convert(ev))
}

func (r *Rows[T]) Terminal(ev gateway.Event) bool { return ev.Type == r.end }
func (r *Rows[T]) Size() int                      { return len(r.rows) }
func (r *Rows[T]) Value() any                     { return r.rows }

// Fields accumulates single-field update events, merging by field name with
// last-write-wins. It is terminal once every required field has been
// answered at least once — duplicate and retransmitted updates are
// tolerated — or when the gateway sends the snapshot end marker. A field
// answered with the unavailable sentinel counts as answered but stays
// absent in the merged result.
type Fields struct {
	end      string
	required map[string]bool
	answered int
	values   map[string]*float64
}

// NewFields returns a scalar-quote accumulator for the given required field
// set.
func NewFields(required []string, end string) *Fields {
	req := make(map[string]bool, len(required))
	for _, f := range required {
		req[f] = false
	}
	return &Fields{end: end, required: req, values: make(map[string]*float64)}
}

func (f *Fields) Ingest(ev gateway.Event) {
	if ev.Type == f.end {
		return
	}
	name := ev.Str("field")
	if name == "" {
		return
	}
	f.values[name] = ev.Float("value")
	if done, tracked := f.required[name]; tracked && !done {
		f.required[name] = true
		f.answered++
	}
}

func (f *Fields) Terminal(ev gateway.Event) bool {
	if ev.Type == f.end {
		return true
	}
	return f.answered == len(f.required)
}

func (f *Fields) Size() int { return len(f.values) }

// Value returns the merged field map including an explicit nil for required
// fields that were never answered.
func (f *Fields) Value() any {
	out := make(map[string]*float64, len(f.required))
	for name := range f.required {
		out[name] = nil
	}
	for name, v := range f.values {
		out[name] = v
	}
	return out
}

// Keyed accumulates key→value pairs scoped strictly to one request id and
// is terminal on the id-scoped end event.
type Keyed struct {
	end     string
	account string
	values  map[string]string
}

// NewKeyed returns a keyed-summary accumulator terminated by the end event.
func NewKeyed(end string) *Keyed {
	return &Keyed{end: end, values: make(map[string]string)}
}

func (k *Keyed) Ingest(ev gateway.Event) {
	if ev.Type == k.end {
		return
	}
	tag := ev.Str("tag")
	if tag == "" {
		return
	}
	k.values[tag] = ev.Str("value")
	if acct := ev.Str("account"); acct != "" {
		k.account = acct
	}
}

func (k *Keyed) Terminal(ev gateway.Event) bool { return ev.Type == k.end }
func (k *Keyed) Size() int                      { return len(k.values) }

// KeyedValue is the typed result of a keyed accumulator.
type KeyedValue struct {
	Account string
	Values  map[string]string
}

func (k *Keyed) Value() any {
	return KeyedValue{Account: k.account, Values: k.values}
}

// First captures the first matching event and is immediately terminal: the
// order-lifecycle family resolves on acknowledgement, not fill completion.
type First[T any] struct {
	match   string
	convert func(gateway.Event) T
	got     bool
	value   T
}

// NewFirst returns an accumulator terminal on the first event of the given
// type.
func NewFirst[T any](match string, convert func(gateway.Event) T) *First[T] {
	return &First[T]{match: match, convert: convert}
}

func (f *First[T]) Ingest(ev gateway.Event) {
	if f.got || ev.Type != f.match {
		return
	}
	f.value = f.convert(ev)
	f.got = true
}

func (f *First[T]) Terminal(gateway.Event) bool { return f.got }

func (f *First[T]) Size() int {
	if f.got {
		return 1
	}
	return 0
}

func (f *First[T]) Value() any { return f.value }
