// Package jobs submits open and close requests to the engine and tracks the
// resulting asynchronous jobs to a terminal state. Each tracked job owns
// exactly one poll loop; every scheduled recheck lives in a cancellable timer
// registry so teardown is a single call and no poll fires afterwards.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/joasgard/basisdesk/internal/domain"
	"github.com/joasgard/basisdesk/internal/notify"
	"github.com/joasgard/basisdesk/internal/platform/engine"
	"github.com/joasgard/basisdesk/internal/sched"
	"github.com/joasgard/basisdesk/internal/store"
)

// DefaultPollInterval is the fixed delay between job status checks.
const DefaultPollInterval = 2 * time.Second

// maxPollFailures bounds consecutive status-fetch failures before the tracker
// gives up on a job and surfaces a connection error.
const maxPollFailures = 3

// Engine is the subset of the engine client the tracker needs.
type Engine interface {
	Authenticated() bool
	SubmitOpen(ctx context.Context, asset string, leverage, sizeUSD float64) (string, error)
	SubmitClose(ctx context.Context, positionID string) (string, error)
	JobStatus(ctx context.Context, jobID string) (engine.JobStatusResponse, error)
	Position(ctx context.Context, id string) (domain.Position, error)
}

// tracked is the client-side record of one in-flight job.
type tracked struct {
	kind       domain.JobKind
	positionID string // close target; empty for opens until the engine assigns one
	failures   int    // consecutive status-fetch failures
	createdAt  time.Time
}

// Tracker owns the job lifecycle between submission and terminal state.
// It never retries a failed job automatically; duplicate submissions for the
// same position are the caller's concern, but updates are id-scoped so
// concurrent independent jobs cannot corrupt state.
type Tracker struct {
	engine    Engine
	positions *store.Positions
	center    *notify.Center
	journal   domain.JournalStore // optional
	timers    *sched.Timers
	interval  time.Duration
	logger    *slog.Logger

	mu     sync.Mutex
	active map[string]*tracked
}

// NewTracker creates a Tracker. journal may be nil when persistence is not
// configured. pollInterval <= 0 selects DefaultPollInterval.
func NewTracker(eng Engine, positions *store.Positions, center *notify.Center, journal domain.JournalStore, pollInterval time.Duration, logger *slog.Logger) *Tracker {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Tracker{
		engine:    eng,
		positions: positions,
		center:    center,
		journal:   journal,
		timers:    sched.NewTimers(),
		interval:  pollInterval,
		logger:    logger.With(slog.String("component", "job_tracker")),
		active:    make(map[string]*tracked),
	}
}

// SubmitOpen submits an open request and starts tracking the returned job.
// It fails fast before any network call when no session exists.
func (t *Tracker) SubmitOpen(ctx context.Context, asset string, leverage, sizeUSD float64) (string, error) {
	if !t.engine.Authenticated() {
		t.center.Push(ctx, notify.NotConnected())
		return "", domain.ErrNotAuthenticated
	}

	jobID, err := t.engine.SubmitOpen(ctx, asset, leverage, sizeUSD)
	if err != nil {
		return "", fmt.Errorf("jobs: submit open %s: %w", asset, err)
	}

	t.logger.InfoContext(ctx, "open job submitted",
		slog.String("job_id", jobID),
		slog.String("asset", asset),
		slog.Float64("leverage", leverage),
		slog.Float64("size_usd", sizeUSD),
	)
	t.track(jobID, domain.JobKindOpen, "")
	return jobID, nil
}

// SubmitClose submits a close request for an existing position. The stored
// position is not touched until the job resolves; an optimistic status flip
// would mask failures.
func (t *Tracker) SubmitClose(ctx context.Context, positionID string) (string, error) {
	if !t.engine.Authenticated() {
		t.center.Push(ctx, notify.NotConnected())
		return "", domain.ErrNotAuthenticated
	}

	jobID, err := t.engine.SubmitClose(ctx, positionID)
	if err != nil {
		return "", fmt.Errorf("jobs: submit close %s: %w", positionID, err)
	}

	t.logger.InfoContext(ctx, "close job submitted",
		slog.String("job_id", jobID),
		slog.String("position_id", positionID),
	)
	t.track(jobID, domain.JobKindClose, positionID)
	return jobID, nil
}

// Tracking reports whether a poll loop is active for the given job id.
func (t *Tracker) Tracking(jobID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.active[jobID]
	return ok
}

// Close cancels every pending poll timer. No poll callback fires after Close
// returns.
func (t *Tracker) Close() {
	t.timers.CancelAll()
	t.mu.Lock()
	t.active = make(map[string]*tracked)
	t.mu.Unlock()
}

// track registers the job and schedules the first status check. A job id
// already being tracked keeps its existing loop.
func (t *Tracker) track(jobID string, kind domain.JobKind, positionID string) {
	t.mu.Lock()
	if _, ok := t.active[jobID]; ok {
		t.mu.Unlock()
		return
	}
	t.active[jobID] = &tracked{kind: kind, positionID: positionID, createdAt: time.Now().UTC()}
	t.mu.Unlock()

	t.schedule(jobID)
}

func (t *Tracker) schedule(jobID string) {
	t.timers.AfterFunc("job:"+jobID, t.interval, func() { t.poll(jobID) })
}

// poll fetches the job status once and either reschedules or finalizes.
func (t *Tracker) poll(jobID string) {
	ctx := context.Background()

	t.mu.Lock()
	rec, ok := t.active[jobID]
	t.mu.Unlock()
	if !ok {
		return
	}

	status, err := t.engine.JobStatus(ctx, jobID)
	if err != nil {
		rec.failures++
		t.logger.WarnContext(ctx, "job status fetch failed",
			slog.String("job_id", jobID),
			slog.Int("failures", rec.failures),
			slog.String("error", err.Error()),
		)
		if rec.failures >= maxPollFailures {
			t.finish(jobID)
			t.center.Push(ctx, notify.JobFailed(domain.Job{
				ID:           jobID,
				Kind:         rec.kind,
				Status:       domain.JobStatusFailed,
				ErrorMessage: "Lost connection to the engine while tracking the request.",
			}))
			return
		}
		t.schedule(jobID)
		return
	}
	rec.failures = 0

	switch domain.JobStatus(status.Status) {
	case domain.JobStatusPending, domain.JobStatusRunning:
		t.schedule(jobID)

	case domain.JobStatusCompleted:
		t.finish(jobID)
		t.completed(ctx, jobID, rec, status)

	case domain.JobStatusFailed:
		t.finish(jobID)
		t.failed(ctx, jobID, rec, status)

	case domain.JobStatusCancelled:
		t.finish(jobID)
		t.logger.InfoContext(ctx, "job cancelled", slog.String("job_id", jobID))
		t.record(ctx, "job_cancelled", map[string]any{"job_id": jobID, "kind": string(rec.kind)})

	default:
		t.logger.WarnContext(ctx, "unknown job status",
			slog.String("job_id", jobID),
			slog.String("status", status.Status),
		)
		t.schedule(jobID)
	}
}

// finish drops the job from the active set; no further polls are issued.
func (t *Tracker) finish(jobID string) {
	t.mu.Lock()
	delete(t.active, jobID)
	t.mu.Unlock()
	t.timers.Cancel("job:" + jobID)
}

func (t *Tracker) completed(ctx context.Context, jobID string, rec *tracked, status engine.JobStatusResponse) {
	switch rec.kind {
	case domain.JobKindOpen:
		pos, err := t.engine.Position(ctx, status.PositionID)
		if err != nil {
			// The job succeeded server-side; the next full refresh will pick
			// the position up even though this fetch failed.
			t.logger.WarnContext(ctx, "position fetch after open failed",
				slog.String("job_id", jobID),
				slog.String("position_id", status.PositionID),
				slog.String("error", err.Error()),
			)
			return
		}
		if err := t.positions.Add(pos); errors.Is(err, domain.ErrAlreadyExists) {
			// The push channel landed first; converge on the same truth.
			_ = t.positions.Update(pos.ID, fullPatch(pos))
		}
		t.center.Push(ctx, notify.PositionOpened(pos))
		t.record(ctx, "position_opened", map[string]any{
			"job_id":      jobID,
			"position_id": pos.ID,
			"asset":       pos.Asset,
			"size_usd":    pos.SizeUSD,
			"leverage":    pos.Leverage,
		})

	case domain.JobKindClose:
		positionID := rec.positionID
		if status.PositionID != "" {
			positionID = status.PositionID
		}
		closed := domain.PositionStatusClosed
		if err := t.positions.Update(positionID, domain.PositionPatch{Status: &closed}); err != nil {
			t.logger.WarnContext(ctx, "close applied to unknown position",
				slog.String("job_id", jobID),
				slog.String("position_id", positionID),
			)
		}
		t.center.Push(ctx, notify.PositionClosed(positionID))
		t.record(ctx, "position_closed", map[string]any{
			"job_id":      jobID,
			"position_id": positionID,
		})
	}
}

func (t *Tracker) failed(ctx context.Context, jobID string, rec *tracked, status engine.JobStatusResponse) {
	now := time.Now().UTC()
	job := domain.Job{
		ID:           jobID,
		Kind:         rec.kind,
		Status:       domain.JobStatusFailed,
		PositionID:   status.PositionID,
		ErrorCode:    status.ErrorCode,
		ErrorMessage: status.Error,
		CreatedAt:    rec.createdAt,
		CompletedAt:  &now,
	}
	t.center.Push(ctx, notify.JobFailed(job))
	t.logger.WarnContext(ctx, "job failed",
		slog.String("job_id", jobID),
		slog.String("kind", string(rec.kind)),
		slog.String("error_code", status.ErrorCode),
	)
	t.record(ctx, "job_failed", map[string]any{
		"job_id":     jobID,
		"kind":       string(rec.kind),
		"error_code": status.ErrorCode,
		"error":      status.Error,
	})
}

// record appends to the trade journal when one is configured.
func (t *Tracker) record(ctx context.Context, event string, detail map[string]any) {
	if t.journal == nil {
		return
	}
	if err := t.journal.Record(ctx, event, detail); err != nil {
		t.logger.WarnContext(ctx, "journal write failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// fullPatch converts a freshly fetched position into a patch covering every
// field, for converging with an earlier push update.
func fullPatch(pos domain.Position) domain.PositionPatch {
	return domain.PositionPatch{
		Status:       &pos.Status,
		Leverage:     &pos.Leverage,
		SizeUSD:      &pos.SizeUSD,
		PnlUSD:       &pos.PnlUSD,
		PnlPercent:   &pos.PnlPercent,
		EntryPrice:   &pos.EntryPrice,
		CurrentPrice: &pos.CurrentPrice,
		HealthFactor: &pos.HealthFactor,
		SpotAddress:  &pos.SpotAddress,
		PerpAddress:  &pos.PerpAddress,
	}
}
