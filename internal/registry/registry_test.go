package registry

import (
	"testing"

	"tradegate/internal/gateway"
)

func TestDispatchScoped(t *testing.T) {
	r := New()
	var got []int64
	r.Bind("tick", 1, func(ev gateway.Event) { got = append(got, ev.ReqID) })
	r.Bind("tick", 2, func(ev gateway.Event) { got = append(got, ev.ReqID) })

	if !r.Dispatch(gateway.Event{Type: "tick", ReqID: 1}) {
		t.Fatal("expected dispatch to fire")
	}
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("handlers fired for %v, want [1]", got)
	}
}

func TestDispatchUnboundReportsNotFired(t *testing.T) {
	r := New()
	if r.Dispatch(gateway.Event{Type: "tick", ReqID: 5}) {
		t.Fatal("expected no handler to fire")
	}
}

func TestDispatchFIFOOrder(t *testing.T) {
	r := New()
	var order []int
	r.Bind("tick", 1, func(gateway.Event) { order = append(order, 1) })
	r.Bind("tick", 1, func(gateway.Event) { order = append(order, 2) })
	r.Bind("tick", 1, func(gateway.Event) { order = append(order, 3) })

	r.Dispatch(gateway.Event{Type: "tick", ReqID: 1})
	for i, v := range order {
		if v != i+1 {
			t.Fatalf("fired in order %v, want [1 2 3]", order)
		}
	}
}

func TestDispatchGlobalAfterScoped(t *testing.T) {
	r := New()
	var order []string
	r.Bind("error", 7, func(gateway.Event) { order = append(order, "scoped") })
	r.Bind("error", ScopeGlobal, func(gateway.Event) { order = append(order, "global") })

	r.Dispatch(gateway.Event{Type: "error", ReqID: 7})
	if len(order) != 2 || order[0] != "scoped" || order[1] != "global" {
		t.Fatalf("fired %v, want [scoped global]", order)
	}
}

func TestGlobalEventSkipsScopedBindings(t *testing.T) {
	r := New()
	fired := false
	r.Bind("error", ScopeGlobal, func(gateway.Event) { fired = true })
	r.Bind("error", 3, func(gateway.Event) { t.Fatal("scoped handler fired for global event") })

	r.Dispatch(gateway.Event{Type: "error", ReqID: ScopeGlobal})
	if !fired {
		t.Fatal("global handler did not fire")
	}
}

func TestUnbindAllIdempotent(t *testing.T) {
	r := New()
	r.Bind("position", 1, func(gateway.Event) {})
	r.Bind("positionEnd", 1, func(gateway.Event) {})
	if got := r.Count(1); got != 2 {
		t.Fatalf("count = %d, want 2", got)
	}

	events := []string{"position", "positionEnd"}
	r.UnbindAll(events, 1)
	if got := r.Count(1); got != 0 {
		t.Fatalf("count after unbind = %d, want 0", got)
	}
	r.UnbindAll(events, 1) // second unbind is a no-op
	if r.Dispatch(gateway.Event{Type: "position", ReqID: 1}) {
		t.Fatal("unbound handler fired")
	}
}

func TestClear(t *testing.T) {
	r := New()
	r.Bind("tick", 1, func(gateway.Event) {})
	r.Bind("error", ScopeGlobal, func(gateway.Event) {})
	r.Clear()
	if r.Size() != 0 {
		t.Fatalf("size after clear = %d, want 0", r.Size())
	}
}
