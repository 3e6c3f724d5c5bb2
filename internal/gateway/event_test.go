package gateway

import (
	"math"
	"testing"
)

func TestDecodeEvent(t *testing.T) {
	raw := []byte(`{"type":"tick","id":12,"data":{"field":"bid","value":101.25}}`)
	ev, err := decodeEvent(raw)
	if err != nil {
		t.Fatalf("decodeEvent: %v", err)
	}
	if ev.Type != EvtTick || ev.ReqID != 12 {
		t.Fatalf("decoded %q id %d, want tick id 12", ev.Type, ev.ReqID)
	}
	if ev.Str("field") != "bid" {
		t.Errorf("field = %q, want bid", ev.Str("field"))
	}
	if v := ev.Float("value"); v == nil || *v != 101.25 {
		t.Errorf("value = %v, want 101.25", v)
	}
}

func TestDecodeEventWithoutID(t *testing.T) {
	ev, err := decodeEvent([]byte(`{"type":"disconnect"}`))
	if err != nil {
		t.Fatalf("decodeEvent: %v", err)
	}
	if ev.ReqID != 0 {
		t.Errorf("id = %d, want 0 for connection-scoped event", ev.ReqID)
	}
}

func TestDecodeEventRejectsMalformed(t *testing.T) {
	if _, err := decodeEvent([]byte(`{"type":`)); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestFloatSentinelConversion(t *testing.T) {
	cases := []struct {
		name  string
		data  map[string]any
		want  *float64
	}{
		{"present", map[string]any{"v": 1.5}, ptr(1.5)},
		{"zero is a value", map[string]any{"v": 0.0}, ptr(0.0)},
		{"sentinel", map[string]any{"v": math.MaxFloat64}, nil},
		{"nan", map[string]any{"v": math.NaN()}, nil},
		{"inf", map[string]any{"v": math.Inf(1)}, nil},
		{"missing", map[string]any{}, nil},
		{"wrong type", map[string]any{"v": "1.5"}, nil},
	}
	for _, c := range cases {
		got := Event{Data: c.data}.Float("v")
		switch {
		case c.want == nil && got != nil:
			t.Errorf("%s: got %v, want nil", c.name, *got)
		case c.want != nil && got == nil:
			t.Errorf("%s: got nil, want %v", c.name, *c.want)
		case c.want != nil && got != nil && *got != *c.want:
			t.Errorf("%s: got %v, want %v", c.name, *got, *c.want)
		}
	}
}

func TestIntAndStrDefaults(t *testing.T) {
	ev := Event{Data: map[string]any{"code": 200.0, "message": "no security definition"}}
	if ev.Int("code") != 200 {
		t.Errorf("code = %d, want 200", ev.Int("code"))
	}
	if ev.Int("missing") != 0 {
		t.Errorf("missing int = %d, want 0", ev.Int("missing"))
	}
	if ev.Str("missing") != "" {
		t.Errorf("missing str = %q, want empty", ev.Str("missing"))
	}
}

func ptr(f float64) *float64 { return &f }
