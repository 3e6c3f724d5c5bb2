package correlate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tradegate/internal/errs"
	"tradegate/internal/gateway"
	"tradegate/internal/registry"
	"tradegate/logger"
)

// outcome pairs the result and error of a resolution. Exactly one outcome is
// delivered per pending request.
type outcome struct {
	res Result
	err error
}

// Pending is one in-flight operation. It is owned exclusively by the Table;
// the registry holds only closures over it for dispatch.
type Pending struct {
	ID        int64
	Kind      string
	CreatedAt time.Time

	spec  Spec
	acc   Accumulator
	state State
	timer *time.Timer
	done  chan outcome
}

// State returns the request's resolution state. Callers outside the table's
// lock domain should treat it as advisory.
func (p *Pending) State() State { return p.state }

// Table is the pending-request table. It shares one mutex with the listener
// registry (the session's single mutual-exclusion domain), making dispatch
// and resolution atomic with respect to each other.
type Table struct {
	mu  *sync.Mutex
	reg *registry.Registry
	log *logger.Entry

	pend map[int64]*Pending

	// sendCancel issues the server-side cancel for a resolving operation.
	// Invoked asynchronously; may be nil.
	sendCancel func(kind string, id int64)

	// observe records one resolved operation per (kind, outcome). May be nil.
	observe func(kind, outcome string)

	// lateEvent records a correlated event that found no binding. May be nil.
	lateEvent func(eventType string)
}

// NewTable builds a table over the shared session mutex and registry.
func NewTable(mu *sync.Mutex, reg *registry.Registry, log *logger.Entry) *Table {
	return &Table{
		mu:   mu,
		reg:  reg,
		log:  log,
		pend: make(map[int64]*Pending),
	}
}

// OnCancel installs the server-side cancel sender.
func (t *Table) OnCancel(fn func(kind string, id int64)) { t.sendCancel = fn }

// OnResolve installs the metrics hook for resolved operations.
func (t *Table) OnResolve(fn func(kind, outcome string)) { t.observe = fn }

// OnLateEvent installs the hook for correlated events with no binding.
func (t *Table) OnLateEvent(fn func(eventType string)) { t.lateEvent = fn }

// Issue creates the pending record for id, binds its handlers, then runs
// send. The id must come from the session allocator; reusing an id that is
// still pending is refused. On send failure the record is resolved
// immediately and the classified error returned.
func (t *Table) Issue(spec Spec, id int64, send func() error) (*Pending, error) {
	p := &Pending{
		ID:        id,
		Kind:      spec.Kind,
		CreatedAt: time.Now(),
		spec:      spec,
		state:     StatePending,
		done:      make(chan outcome, 1),
	}
	if spec.NewAccumulator != nil {
		p.acc = spec.NewAccumulator()
	}

	t.mu.Lock()
	if _, busy := t.pend[id]; busy {
		t.mu.Unlock()
		return nil, fmt.Errorf("correlation id %d already pending", id)
	}
	t.pend[id] = p
	for _, evType := range spec.boundEvents() {
		t.reg.Bind(evType, id, t.handlerFor(p))
	}
	if spec.Timeout > 0 {
		p.timer = time.AfterFunc(spec.Timeout, func() { t.expire(p) })
	}
	t.mu.Unlock()

	if err := send(); err != nil {
		cerr := errs.Connection("send "+spec.Kind, err)
		t.mu.Lock()
		t.resolveLocked(p, StateCancelled, Result{}, cerr, false)
		t.mu.Unlock()
		return nil, cerr
	}
	return p, nil
}

// handlerFor builds the dispatch handler for one pending record. It runs
// under the session mutex: ingestion, the terminal check and resolution are
// atomic with unbind, so a handler never fires after cleanup began.
func (t *Table) handlerFor(p *Pending) registry.Handler {
	return func(ev gateway.Event) {
		if p.state != StatePending {
			return
		}
		if ev.Type == gateway.EvtError {
			code := ev.Int("code")
			msg := ev.Str("message")
			if errs.IsWarning(code) {
				t.log.WithFields(logger.Fields{
					"id":   p.ID,
					"kind": p.Kind,
					"code": code,
				}).Debug(msg)
				return
			}
			t.resolveLocked(p, StateResolved, Result{}, errs.Classify(code, msg), true)
			return
		}
		if p.acc != nil {
			p.acc.Ingest(ev)
			if p.acc.Terminal(ev) {
				t.resolveLocked(p, StateResolved, Result{Value: p.acc.Value()}, nil, true)
			}
		}
	}
}

// Dispatch routes one inbound event through the registry. A correlated event
// that finds no binding is the explicit late-arrival policy: counted and
// logged at debug, never an error.
func (t *Table) Dispatch(ev gateway.Event) {
	t.mu.Lock()
	fired := t.reg.Dispatch(ev)
	t.mu.Unlock()

	if !fired && ev.ReqID != registry.ScopeGlobal {
		if t.lateEvent != nil {
			t.lateEvent(ev.Type)
		}
		t.log.WithFields(logger.Fields{
			"event": ev.Type,
			"id":    ev.ReqID,
		}).Debug("dropping event for resolved or unknown operation")
	}
}

// Await blocks until the pending request resolves or ctx is done. Context
// cancellation resolves the record (with cleanup and server-side cancel)
// before returning.
func (t *Table) Await(ctx context.Context, p *Pending) (Result, error) {
	select {
	case out := <-p.done:
		return out.res, out.err
	case <-ctx.Done():
		t.mu.Lock()
		t.resolveLocked(p, StateCancelled, Result{}, ctx.Err(), true)
		t.mu.Unlock()
		return Result{}, ctx.Err()
	}
}

// expire is the timeout path. Expiry with partial tolerance and a non-empty
// accumulator is a success outcome, not an error.
func (t *Table) expire(p *Pending) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p.state != StatePending {
		return
	}
	if p.spec.AllowPartial && p.acc != nil && p.acc.Size() > 0 {
		t.resolveLocked(p, StateResolved, Result{Value: p.acc.Value(), Partial: true}, nil, true)
		return
	}
	t.resolveLocked(p, StateTimedOut, Result{}, errs.ErrTimeout, true)
}

// FailAll resolves every pending request with cause in one locked sweep.
// Used on connection loss, pre-empting individual timeouts; no server-side
// cancels are issued because there is no server left to tell.
func (t *Table) FailAll(cause error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.FailAllLocked(cause)
}

// FailAllLocked is FailAll for callers already inside the shared lock
// domain, so the session can fail pendings and subscriptions in one turn.
func (t *Table) FailAllLocked(cause error) {
	for _, p := range t.pend {
		t.resolveLocked(p, StateCancelled, Result{}, cause, false)
	}
}

// Len returns the number of pending requests.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pend)
}

// LenLocked is Len for callers already holding the shared mutex.
func (t *Table) LenLocked() int { return len(t.pend) }

// resolveLocked performs the exactly-once transition
// Pending → Resolving → final and the cleanup shared by every path: timer
// stop, registry unbind, table removal, optional server-side cancel, outcome
// delivery. A second trigger for an already-resolving record is a no-op.
func (t *Table) resolveLocked(p *Pending, final State, res Result, err error, serverCancel bool) {
	if p.state != StatePending {
		return
	}
	p.state = StateResolving

	if p.timer != nil {
		p.timer.Stop()
	}
	t.reg.UnbindAll(p.spec.boundEvents(), p.ID)
	delete(t.pend, p.ID)

	if serverCancel && p.spec.CancelKind != "" && t.sendCancel != nil {
		kind, id := p.spec.CancelKind, p.ID
		go t.sendCancel(kind, id)
	}

	p.state = final
	if t.observe != nil {
		t.observe(p.Kind, outcomeLabel(final, res, err))
	}
	p.done <- outcome{res: res, err: err}
}

func outcomeLabel(final State, res Result, err error) string {
	switch {
	case err == nil && res.Partial:
		return "partial"
	case err == nil:
		return "resolved"
	case errors.Is(err, errs.ErrTimeout):
		return "timeout"
	case errors.Is(err, errs.ErrConnLost):
		return "conn_lost"
	case errors.Is(err, errs.ErrNotFound):
		return "not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
