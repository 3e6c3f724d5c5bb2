// Package ratelimit provides the per-connection outbound admission window and
// the correlation id allocator. Both are scoped to a single connection epoch
// and reset on reconnect.
package ratelimit

import (
	"sync"
	"sync/atomic"
	"time"

	"tradegate/internal/errs"
)

// windowInterval is the trailing interval the admission window covers.
const windowInterval = time.Second

// Window admits at most ceiling sends in any trailing one-second interval.
// Admission is checked before every outbound send, not only at id allocation.
type Window struct {
	mu      sync.Mutex
	ceiling int
	stamps  []time.Time
	now     func() time.Time
}

// NewWindow returns a window with the given ceiling. A ceiling below one
// falls back to one so a misconfigured limiter never wedges the session.
func NewWindow(ceiling int) *Window {
	if ceiling < 1 {
		ceiling = 1
	}
	return &Window{ceiling: ceiling, now: time.Now}
}

// Admit prunes stamps older than the trailing interval, then records the
// current instant if occupancy is below the ceiling. Returns
// errs.ErrRateLimited otherwise. Comparisons use the monotonic clock carried
// by time.Now values.
func (w *Window) Admit() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.pruneLocked(now)
	if len(w.stamps) >= w.ceiling {
		return errs.ErrRateLimited
	}
	w.stamps = append(w.stamps, now)
	return nil
}

// Occupancy reports how many admissions remain inside the trailing interval.
func (w *Window) Occupancy() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pruneLocked(w.now())
	return len(w.stamps)
}

// Ceiling returns the configured admission ceiling.
func (w *Window) Ceiling() int { return w.ceiling }

// Reset drops all recorded admissions. Called on reconnect.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stamps = w.stamps[:0]
}

func (w *Window) pruneLocked(now time.Time) {
	cutoff := now.Add(-windowInterval)
	keep := 0
	for keep < len(w.stamps) && !w.stamps[keep].After(cutoff) {
		keep++
	}
	if keep > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[keep:]...)
	}
}

// Allocator issues strictly increasing correlation ids, unique for the
// lifetime of a connection. Id zero is reserved for connection-scoped
// ("global") listener bindings.
type Allocator struct {
	last atomic.Int64
}

// NewAllocator returns an allocator whose first id is one.
func NewAllocator() *Allocator { return &Allocator{} }

// Next returns the next correlation id.
func (a *Allocator) Next() int64 { return a.last.Add(1) }

// Reset restarts the sequence. Called on reconnect.
func (a *Allocator) Reset() { a.last.Store(0) }
