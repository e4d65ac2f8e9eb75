package sched

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTimers_FireAndForget(t *testing.T) {
	timers := NewTimers()
	defer timers.CancelAll()

	done := make(chan struct{})
	timers.AfterFunc("k", time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
	if timers.Pending("k") {
		t.Error("fired timer still pending")
	}
}

func TestTimers_ReplaceSameKey(t *testing.T) {
	timers := NewTimers()
	defer timers.CancelAll()

	var first, second atomic.Bool
	timers.AfterFunc("k", 50*time.Millisecond, func() { first.Store(true) })
	timers.AfterFunc("k", time.Millisecond, func() { second.Store(true) })

	time.Sleep(100 * time.Millisecond)
	if first.Load() {
		t.Error("replaced timer fired")
	}
	if !second.Load() {
		t.Error("replacement timer did not fire")
	}
	if timers.Len() != 0 {
		t.Errorf("Len = %d, want 0", timers.Len())
	}
}

func TestTimers_CancelAllBlocksLateCallbacks(t *testing.T) {
	timers := NewTimers()

	var fired atomic.Int32
	for _, key := range []string{"a", "b", "c"} {
		timers.AfterFunc(key, 10*time.Millisecond, func() { fired.Add(1) })
	}
	timers.CancelAll()

	// Scheduling after teardown is ignored.
	timers.AfterFunc("late", time.Millisecond, func() { fired.Add(1) })

	time.Sleep(50 * time.Millisecond)
	if n := fired.Load(); n != 0 {
		t.Errorf("%d callbacks fired after CancelAll", n)
	}
	if timers.Len() != 0 {
		t.Errorf("Len = %d after CancelAll, want 0", timers.Len())
	}

	// Repeat teardown and single cancel are no-ops.
	timers.CancelAll()
	timers.Cancel("a")
}
