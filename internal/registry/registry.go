// Package registry binds event handlers keyed by event type and correlation
// id and dispatches inbound gateway events to exactly the handlers bound to
// them.
//
// The registry does no locking of its own: it shares one mutual-exclusion
// domain with the pending-request table so that dispatch and unbind are
// atomic with respect to each other — a handler that has been unbound is
// never invoked, even when the unbind races an in-flight event. The owning
// session serializes every call.
package registry

import "tradegate/internal/gateway"

// ScopeGlobal is the scope of connection-wide bindings. Correlation ids
// start at one, so zero never collides with a request scope.
const ScopeGlobal int64 = 0

// Handler consumes one dispatched event. Handlers run inside the session's
// lock domain and must not block.
type Handler func(gateway.Event)

type key struct {
	event string
	scope int64
}

// Registry maps (event type, scope) to the handlers bound to it. Multiple
// bindings for the same key are allowed and fire in bind order.
type Registry struct {
	bindings map[key][]Handler
}

func New() *Registry {
	return &Registry{bindings: make(map[key][]Handler)}
}

// Bind registers handler for the given event type and scope.
func (r *Registry) Bind(event string, scope int64, h Handler) {
	k := key{event: event, scope: scope}
	r.bindings[k] = append(r.bindings[k], h)
}

// UnbindAll removes every binding for the listed event types in the given
// scope. Idempotent; unbinding an empty scope is a no-op.
func (r *Registry) UnbindAll(events []string, scope int64) {
	for _, ev := range events {
		delete(r.bindings, key{event: ev, scope: scope})
	}
}

// Dispatch invokes the handlers bound to the event's correlation id, then
// any global handlers for the event type, in FIFO bind order. It reports
// whether at least one handler fired.
func (r *Registry) Dispatch(ev gateway.Event) bool {
	fired := false
	if ev.ReqID != ScopeGlobal {
		for _, h := range r.bindings[key{event: ev.Type, scope: ev.ReqID}] {
			h(ev)
			fired = true
		}
	}
	for _, h := range r.bindings[key{event: ev.Type, scope: ScopeGlobal}] {
		h(ev)
		fired = true
	}
	return fired
}

// Count returns the number of bindings held for the given scope across all
// event types. Used by status reporting and leak checks in tests.
func (r *Registry) Count(scope int64) int {
	n := 0
	for k, hs := range r.bindings {
		if k.scope == scope {
			n += len(hs)
		}
	}
	return n
}

// Size returns the total number of bindings.
func (r *Registry) Size() int {
	n := 0
	for _, hs := range r.bindings {
		n += len(hs)
	}
	return n
}

// Clear removes every binding. Used during connection-loss cleanup.
func (r *Registry) Clear() {
	r.bindings = make(map[key][]Handler)
}
