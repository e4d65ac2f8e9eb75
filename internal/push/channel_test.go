package push

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joasgard/basisdesk/internal/domain"
	"github.com/joasgard/basisdesk/internal/notify"
	"github.com/joasgard/basisdesk/internal/store"
)

// fakeTransport feeds scripted events to the channel's read loop.
type fakeTransport struct {
	events    chan domain.PushEvent
	done      chan struct{}
	closeOnce sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		events: make(chan domain.PushEvent, 16),
		done:   make(chan struct{}),
	}
}

func (f *fakeTransport) ReadEvent() (domain.PushEvent, error) {
	select {
	case evt := <-f.events:
		return evt, nil
	case <-f.done:
		return domain.PushEvent{}, errors.New("transport closed")
	}
}

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() { close(f.done) })
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func event(t *testing.T, typ domain.PushEventType, data any) domain.PushEvent {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal event data: %v", err)
	}
	return domain.PushEvent{Type: typ, Data: raw, Timestamp: time.Now().UTC()}
}

func TestChannel_GivesUpAfterMaxConsecutiveErrors(t *testing.T) {
	var dials atomic.Int32
	dial := func(ctx context.Context) (Transport, error) {
		dials.Add(1)
		return nil, errors.New("connection refused")
	}

	positions := store.NewPositions()
	center := notify.NewCenter(nil, testLogger())
	ch := NewChannel(dial, positions, store.NewRates(), nil, center, time.Millisecond, testLogger())
	defer ch.Close()

	ch.Connect(context.Background())

	waitFor(t, "gave_up state", func() bool { return ch.State() == StateGaveUp })
	if got := dials.Load(); got != MaxAttempts {
		t.Errorf("dial attempts = %d, want %d", got, MaxAttempts)
	}

	live := center.Live()
	if len(live) != 1 {
		t.Fatalf("got %d notifications, want exactly 1", len(live))
	}
	if !live[0].Persistent {
		t.Error("gave-up notification must be persistent")
	}

	// Terminal state: no further dials.
	time.Sleep(20 * time.Millisecond)
	if got := dials.Load(); got != MaxAttempts {
		t.Errorf("dials continued after gave_up: %d", got)
	}
}

func TestChannel_DispatchesPositionAndRateUpdates(t *testing.T) {
	transport := newFakeTransport()
	dial := func(ctx context.Context) (Transport, error) { return transport, nil }

	positions := store.NewPositions()
	_ = positions.Add(domain.Position{ID: "pos_1", Status: domain.PositionStatusOpen, SizeUSD: 1000})
	rates := store.NewRates()
	center := notify.NewCenter(nil, testLogger())
	ch := NewChannel(dial, positions, rates, nil, center, time.Millisecond, testLogger())
	defer ch.Close()

	ch.Connect(context.Background())
	waitFor(t, "open state", func() bool { return ch.State() == StateOpen })

	pnl := 42.5
	transport.events <- event(t, domain.PushEventPositionUpdate, domain.PositionUpdateData{ID: "pos_1", PnlUSD: &pnl})
	transport.events <- event(t, domain.PushEventRateUpdate, domain.RateUpdateData{Asset: "SOL", MarkPrice: 151.2, FundingAPR: 0.11})
	// Unknown and error events are logged only, never fatal.
	transport.events <- domain.PushEvent{Type: "heartbeat_v2", Timestamp: time.Now()}
	transport.events <- domain.PushEvent{Type: domain.PushEventError, Data: json.RawMessage(`{"reason":"lagging"}`)}

	waitFor(t, "pnl applied", func() bool {
		pos, _ := positions.Get("pos_1")
		return pos.PnlUSD == 42.5
	})
	waitFor(t, "rate applied", func() bool {
		rate, ok := rates.Get("SOL")
		return ok && rate.MarkPrice == 151.2
	})

	pos, _ := positions.Get("pos_1")
	if pos.SizeUSD != 1000 {
		t.Errorf("unrelated field changed: %v", pos.SizeUSD)
	}
	if ch.State() != StateOpen {
		t.Errorf("state = %s after unknown event, want open", ch.State())
	}
}

func TestChannel_PushCreatesUnknownPosition(t *testing.T) {
	transport := newFakeTransport()
	dial := func(ctx context.Context) (Transport, error) { return transport, nil }

	positions := store.NewPositions()
	center := notify.NewCenter(nil, testLogger())
	ch := NewChannel(dial, positions, store.NewRates(), nil, center, time.Millisecond, testLogger())
	defer ch.Close()

	ch.Connect(context.Background())
	waitFor(t, "open state", func() bool { return ch.State() == StateOpen })

	status := "open"
	size := 750.0
	transport.events <- event(t, domain.PushEventPositionUpdate, domain.PositionUpdateData{
		ID: "pos_push", Status: &status, SizeUSD: &size,
	})

	waitFor(t, "position created from push", func() bool {
		_, ok := positions.Get("pos_push")
		return ok
	})
	stats := positions.Stats()
	if stats.OpenCount != 1 || stats.TotalValue != 750 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestChannel_OpenResetsAttemptCounter(t *testing.T) {
	var dials atomic.Int32
	var mu sync.Mutex
	transports := []*fakeTransport{}
	dial := func(ctx context.Context) (Transport, error) {
		n := dials.Add(1)
		// Fail twice, then connect.
		if n <= 2 {
			return nil, errors.New("connection refused")
		}
		tr := newFakeTransport()
		mu.Lock()
		transports = append(transports, tr)
		mu.Unlock()
		return tr, nil
	}

	positions := store.NewPositions()
	center := notify.NewCenter(nil, testLogger())
	ch := NewChannel(dial, positions, store.NewRates(), nil, center, time.Millisecond, testLogger())
	defer ch.Close()

	ch.Connect(context.Background())
	waitFor(t, "open state", func() bool { return ch.State() == StateOpen })

	// Drop the live transport: the channel reconnects with a fresh backoff
	// budget instead of inheriting the two earlier failures.
	mu.Lock()
	tr := transports[0]
	mu.Unlock()
	tr.Close()

	waitFor(t, "reconnected", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(transports) >= 2 && ch.State() == StateOpen
	})
	if ch.State() == StateGaveUp {
		t.Fatal("channel gave up despite successful opens resetting the counter")
	}
	if len(center.Live()) != 0 {
		t.Errorf("unexpected notifications: %+v", center.Live())
	}
}

func TestChannel_CloseSafeFromAnyState(t *testing.T) {
	dial := func(ctx context.Context) (Transport, error) {
		return nil, errors.New("connection refused")
	}
	center := notify.NewCenter(nil, testLogger())
	ch := NewChannel(dial, store.NewPositions(), store.NewRates(), nil, center, 50*time.Millisecond, testLogger())

	// Close before any connect.
	ch.Close()
	ch.Close()

	if ch.State() != StateDisconnected {
		t.Errorf("state = %s, want disconnected", ch.State())
	}

	// Connect after close is a no-op.
	ch.Connect(context.Background())
	time.Sleep(10 * time.Millisecond)
	if ch.State() != StateDisconnected {
		t.Errorf("closed channel reconnected: %s", ch.State())
	}
}
