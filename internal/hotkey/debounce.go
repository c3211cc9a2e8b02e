// Package hotkey turns global hotkey presses into overlay toggles, capturing
// the frontmost application before the overlay takes focus.
package hotkey

import (
	"sync"
	"time"
)

// DefaultDebounce is the minimum spacing between accepted triggers.
const DefaultDebounce = 200 * time.Millisecond

// Debouncer drops triggers that arrive within a window of the last accepted
// one. Dropped triggers do not extend the window.
type Debouncer struct {
	mu     sync.Mutex
	window time.Duration
	last   time.Time
	fired  bool
	now    func() time.Time
}

// NewDebouncer returns a debouncer with the given window. A nil now uses
// the wall clock.
func NewDebouncer(window time.Duration, now func() time.Time) *Debouncer {
	if window <= 0 {
		window = DefaultDebounce
	}
	if now == nil {
		now = time.Now
	}
	return &Debouncer{window: window, now: now}
}

// Allow reports whether a trigger arriving now should fire.
func (d *Debouncer) Allow() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if d.fired && now.Sub(d.last) < d.window {
		return false
	}
	d.last = now
	d.fired = true
	return true
}
