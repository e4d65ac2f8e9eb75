package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/joasgard/basisdesk/internal/domain"
	"github.com/joasgard/basisdesk/internal/notify"
	"github.com/joasgard/basisdesk/internal/platform/engine"
	"github.com/joasgard/basisdesk/internal/store"
)

// fakeEngine scripts job status sequences per job id and counts polls.
type fakeEngine struct {
	mu        sync.Mutex
	authed    bool
	statuses  map[string][]engine.JobStatusResponse
	polls     map[string]int
	positions map[string]domain.Position
	statusErr error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		authed:    true,
		statuses:  make(map[string][]engine.JobStatusResponse),
		polls:     make(map[string]int),
		positions: make(map[string]domain.Position),
	}
}

func (f *fakeEngine) Authenticated() bool { return f.authed }

func (f *fakeEngine) SubmitOpen(ctx context.Context, asset string, leverage, sizeUSD float64) (string, error) {
	return "job_open", nil
}

func (f *fakeEngine) SubmitClose(ctx context.Context, positionID string) (string, error) {
	return "job_close", nil
}

func (f *fakeEngine) JobStatus(ctx context.Context, jobID string) (engine.JobStatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls[jobID]++
	if f.statusErr != nil {
		return engine.JobStatusResponse{}, f.statusErr
	}
	seq := f.statuses[jobID]
	if len(seq) == 0 {
		return engine.JobStatusResponse{JobID: jobID, Status: "pending"}, nil
	}
	next := seq[0]
	if len(seq) > 1 {
		f.statuses[jobID] = seq[1:]
	}
	return next, nil
}

func (f *fakeEngine) Position(ctx context.Context, id string) (domain.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pos, ok := f.positions[id]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	return pos, nil
}

func (f *fakeEngine) pollCount(jobID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls[jobID]
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestTracker(eng Engine) (*Tracker, *store.Positions, *notify.Center) {
	positions := store.NewPositions()
	center := notify.NewCenter(nil, testLogger())
	tracker := NewTracker(eng, positions, center, nil, time.Millisecond, testLogger())
	return tracker, positions, center
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

func TestTracker_OpenHappyPath(t *testing.T) {
	eng := newFakeEngine()
	eng.statuses["job_open"] = []engine.JobStatusResponse{
		{JobID: "job_open", Status: "running"},
		{JobID: "job_open", Status: "completed", PositionID: "pos_1"},
	}
	eng.positions["pos_1"] = domain.Position{
		ID: "pos_1", Asset: "SOL", Status: domain.PositionStatusOpen,
		Leverage: 3, SizeUSD: 1000,
	}

	tracker, positions, center := newTestTracker(eng)
	defer tracker.Close()

	jobID, err := tracker.SubmitOpen(context.Background(), "SOL", 3.0, 1000)
	if err != nil {
		t.Fatalf("SubmitOpen failed: %v", err)
	}
	if jobID != "job_open" {
		t.Fatalf("jobID = %q", jobID)
	}

	waitFor(t, "position in store", func() bool {
		_, ok := positions.Get("pos_1")
		return ok
	})

	pos, _ := positions.Get("pos_1")
	if pos.Status != domain.PositionStatusOpen {
		t.Errorf("status = %s, want open", pos.Status)
	}
	stats := positions.Stats()
	if stats.OpenCount != 1 || stats.TotalValue != 1000 {
		t.Errorf("stats = %+v", stats)
	}

	waitFor(t, "success notification", func() bool {
		for _, n := range center.Live() {
			if n.Kind == domain.NotificationSuccess {
				return true
			}
		}
		return false
	})

	// Terminal jobs are no longer polled.
	waitFor(t, "tracking to stop", func() bool { return !tracker.Tracking("job_open") })
	before := eng.pollCount("job_open")
	time.Sleep(20 * time.Millisecond)
	if after := eng.pollCount("job_open"); after != before {
		t.Errorf("polls continued after terminal state: %d -> %d", before, after)
	}
}

func TestTracker_CloseFailureKeepsPositionAndResolvesTaxonomy(t *testing.T) {
	eng := newFakeEngine()
	eng.statuses["job_close"] = []engine.JobStatusResponse{
		{JobID: "job_close", Status: "failed", ErrorCode: "RISK-0002"},
	}

	tracker, positions, center := newTestTracker(eng)
	defer tracker.Close()

	_ = positions.Add(domain.Position{ID: "pos_1", Status: domain.PositionStatusOpen, SizeUSD: 500})

	if _, err := tracker.SubmitClose(context.Background(), "pos_1"); err != nil {
		t.Fatalf("SubmitClose failed: %v", err)
	}

	waitFor(t, "error notification", func() bool { return len(center.Live()) > 0 })

	live := center.Live()
	if len(live) != 1 {
		t.Fatalf("got %d notifications, want 1", len(live))
	}
	n := live[0]
	if n.Kind != domain.NotificationError {
		t.Errorf("kind = %s, want error", n.Kind)
	}
	if n.Code != "RISK-0002" {
		t.Errorf("code = %q, want RISK-0002", n.Code)
	}
	info, _ := domain.ResolveError("RISK-0002")
	if n.Title != info.Title {
		t.Errorf("title = %q, want taxonomy title %q", n.Title, info.Title)
	}

	// No optimistic flip: the position stays open on a failed close.
	pos, _ := positions.Get("pos_1")
	if pos.Status != domain.PositionStatusOpen {
		t.Errorf("status = %s, want open", pos.Status)
	}
}

func TestTracker_NotAuthenticatedFailsFast(t *testing.T) {
	eng := newFakeEngine()
	eng.authed = false

	tracker, _, center := newTestTracker(eng)
	defer tracker.Close()

	_, err := tracker.SubmitOpen(context.Background(), "SOL", 2, 100)
	if !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Fatalf("err = %v, want ErrNotAuthenticated", err)
	}
	if eng.pollCount("job_open") != 0 {
		t.Error("engine was polled despite missing session")
	}

	live := center.Live()
	if len(live) != 1 || live[0].Code != "AUTH-0001" {
		t.Errorf("expected one AUTH-0001 notification, got %+v", live)
	}
}

func TestTracker_CloseCancelsPendingPolls(t *testing.T) {
	eng := newFakeEngine() // scripted as perpetually pending

	tracker, _, _ := newTestTracker(eng)

	if _, err := tracker.SubmitOpen(context.Background(), "SOL", 2, 100); err != nil {
		t.Fatalf("SubmitOpen failed: %v", err)
	}
	waitFor(t, "first poll", func() bool { return eng.pollCount("job_open") > 0 })

	tracker.Close()
	before := eng.pollCount("job_open")
	time.Sleep(20 * time.Millisecond)
	if after := eng.pollCount("job_open"); after != before {
		t.Errorf("polls fired after Close: %d -> %d", before, after)
	}
	if tracker.Tracking("job_open") {
		t.Error("job still tracked after Close")
	}
}

func TestTracker_BoundedRetryOnStatusErrors(t *testing.T) {
	eng := newFakeEngine()
	eng.statusErr = errors.New("connection refused")

	tracker, _, center := newTestTracker(eng)
	defer tracker.Close()

	if _, err := tracker.SubmitOpen(context.Background(), "SOL", 2, 100); err != nil {
		t.Fatalf("SubmitOpen failed: %v", err)
	}

	waitFor(t, "tracker to give up", func() bool { return !tracker.Tracking("job_open") })
	if got := eng.pollCount("job_open"); got != maxPollFailures {
		t.Errorf("poll count = %d, want %d", got, maxPollFailures)
	}
	waitFor(t, "connection error notification", func() bool { return len(center.Live()) == 1 })
}
