// Package sched provides a cancellable timer registry. Components that
// schedule delayed work (job polling, reconnect backoff, notification expiry)
// own one registry each, so lifecycle teardown is a single CancelAll call and
// no callback can fire after the owner is disposed.
package sched

import (
	"sync"
	"time"
)

// Timers tracks outstanding time.AfterFunc timers by key. At most one timer
// exists per key; scheduling on an existing key replaces the pending timer.
type Timers struct {
	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
}

// NewTimers creates an empty registry.
func NewTimers() *Timers {
	return &Timers{pending: make(map[string]*time.Timer)}
}

// AfterFunc schedules fn to run after d, tracked under key. The registry
// removes the entry before invoking fn. Scheduling after CancelAll is a no-op,
// so a torn-down owner cannot leak callbacks.
func (t *Timers) AfterFunc(key string, d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	if prev, ok := t.pending[key]; ok {
		prev.Stop()
	}
	t.pending[key] = time.AfterFunc(d, func() {
		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			return
		}
		delete(t.pending, key)
		t.mu.Unlock()
		fn()
	})
}

// Cancel stops the timer tracked under key, if any.
func (t *Timers) Cancel(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if timer, ok := t.pending[key]; ok {
		timer.Stop()
		delete(t.pending, key)
	}
}

// Pending reports whether a timer is outstanding for key.
func (t *Timers) Pending(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.pending[key]
	return ok
}

// Len returns the number of outstanding timers.
func (t *Timers) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// CancelAll stops every outstanding timer and marks the registry closed.
// Safe to call from any state, including repeatedly.
func (t *Timers) CancelAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, timer := range t.pending {
		timer.Stop()
		delete(t.pending, key)
	}
	t.closed = true
}
