// Package idle records an implicit decline for visitors who leave the
// preference panel untouched for a configured window.
//
// Timer is the in-process form: one deferred callback, cancelled by any
// pointer interaction. Tracker is the HTTP form: the first display time is
// kept in a session cookie and the window is checked on the next request.
package idle

import (
	"sync"
	"time"
)

// Timer schedules at most one callback at a time. The zero value is ready
// to use and safe for concurrent use.
type Timer struct {
	mu      sync.Mutex
	t       *time.Timer
	pending bool
}

// Start schedules fn after window, replacing any pending callback. A window
// of zero or less never schedules and returns false.
func (t *Timer) Start(window time.Duration, fn func()) bool {
	if window <= 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.t != nil {
		t.t.Stop()
	}

	var self *time.Timer
	self = time.AfterFunc(window, func() {
		t.mu.Lock()
		if t.t != self {
			t.mu.Unlock()
			return
		}
		t.pending = false
		t.mu.Unlock()
		fn()
	})
	t.t = self
	t.pending = true
	return true
}

// Cancel stops a pending callback and reports whether one was stopped.
func (t *Timer) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.t == nil || !t.pending {
		return false
	}
	t.t.Stop()
	t.t = nil
	t.pending = false
	return true
}

// Pending reports whether a callback is scheduled and has not run.
func (t *Timer) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}
