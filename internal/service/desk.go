// Package service exposes the orchestrator API consumed by UI collaborators:
// fetching positions, opening and closing them, and selecting one for
// inspection. Each call returns promptly so callers can react (re-enable a
// control, show an error) while job tracking continues independently.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/joasgard/basisdesk/internal/alloc"
	"github.com/joasgard/basisdesk/internal/domain"
	"github.com/joasgard/basisdesk/internal/jobs"
	"github.com/joasgard/basisdesk/internal/notify"
	"github.com/joasgard/basisdesk/internal/preflight"
	"github.com/joasgard/basisdesk/internal/store"
)

// MinLeverage is the floor below which a leveraged basis position makes no
// sense; the engine enforces the same bound server-side.
const MinLeverage = 1.1

// deltaEpsilon is the residual exposure (as a fraction of size) above which
// the allocation diagnostic is surfaced as a warning.
const deltaEpsilon = 0.01

// Engine is the subset of the engine client the desk needs directly.
type Engine interface {
	Authenticated() bool
	Positions(ctx context.Context) ([]domain.Position, error)
}

// Config carries the trading parameters the desk validates against.
type Config struct {
	MaxLeverage float64
	SpotFeeRate float64
	PerpFeeRate float64
}

// Desk is the facade over the position lifecycle orchestrator.
type Desk struct {
	engine    Engine
	tracker   *jobs.Tracker
	sequencer *preflight.Sequencer
	positions *store.Positions
	center    *notify.Center
	cfg       Config
	logger    *slog.Logger
}

// NewDesk wires the facade over its collaborators.
func NewDesk(eng Engine, tracker *jobs.Tracker, sequencer *preflight.Sequencer, positions *store.Positions, center *notify.Center, cfg Config, logger *slog.Logger) *Desk {
	return &Desk{
		engine:    eng,
		tracker:   tracker,
		sequencer: sequencer,
		positions: positions,
		center:    center,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "desk")),
	}
}

// FetchPositions pulls the full position list from the engine and replaces
// the local collection. This is the refresh that prunes closed positions.
func (d *Desk) FetchPositions(ctx context.Context) ([]domain.Position, error) {
	positions, err := d.engine.Positions(ctx)
	if err != nil {
		return nil, fmt.Errorf("desk: fetch positions: %w", err)
	}
	d.positions.SetAll(positions)
	return positions, nil
}

// PreviewAllocation computes the fee-adjusted leg split for display. It is
// recomputed on every input change; a skewed result is surfaced as a warning
// because it indicates a fee-model problem, not a user error.
func (d *Desk) PreviewAllocation(ctx context.Context, sizeUSD float64) (domain.Allocation, error) {
	a, err := alloc.Compute(sizeUSD, d.cfg.SpotFeeRate, d.cfg.PerpFeeRate)
	if err != nil {
		return domain.Allocation{}, err
	}
	if math.Abs(a.NetDelta) > deltaEpsilon*sizeUSD {
		d.logger.WarnContext(ctx, "allocation not delta-neutral",
			slog.Float64("net_delta", a.NetDelta),
			slog.Float64("size_usd", sizeUSD),
		)
		d.center.Push(ctx, notify.AllocationSkewed(a))
	}
	return a, nil
}

// OpenPosition validates the order, runs the preflight sequence, and on an
// all-passed batch submits the open job. The returned job id is already being
// tracked when OpenPosition returns; the position itself appears in the store
// once the job completes or the push channel reports it.
func (d *Desk) OpenPosition(ctx context.Context, asset string, leverage, sizeUSD float64) (string, error) {
	if !d.engine.Authenticated() {
		d.center.Push(ctx, notify.NotConnected())
		return "", domain.ErrNotAuthenticated
	}
	if asset == "" {
		return "", fmt.Errorf("desk: %w: asset must not be empty", domain.ErrInvalidOrder)
	}
	if leverage < MinLeverage || leverage > d.cfg.MaxLeverage {
		return "", fmt.Errorf("desk: %w: leverage %.2f outside [%.1f, %.1f]",
			domain.ErrInvalidOrder, leverage, MinLeverage, d.cfg.MaxLeverage)
	}
	if sizeUSD <= 0 {
		return "", fmt.Errorf("desk: %w: size must be > 0", domain.ErrInvalidOrder)
	}

	// Allocation preview doubles as the fee-model diagnostic before submit.
	if _, err := d.PreviewAllocation(ctx, sizeUSD); err != nil {
		return "", err
	}

	var jobID string
	var submitErr error
	err := d.sequencer.Run(ctx, asset, leverage, sizeUSD, func() {
		jobID, submitErr = d.tracker.SubmitOpen(ctx, asset, leverage, sizeUSD)
	})
	if err != nil {
		return "", err
	}
	if submitErr != nil {
		return "", submitErr
	}
	return jobID, nil
}

// ClosePosition submits a close job for an existing position. Nothing is
// marked locally until the job resolves.
func (d *Desk) ClosePosition(ctx context.Context, positionID string) (string, error) {
	if _, ok := d.positions.Get(positionID); !ok {
		return "", fmt.Errorf("desk: close %s: %w", positionID, domain.ErrNotFound)
	}
	return d.tracker.SubmitClose(ctx, positionID)
}

// SelectPosition marks a position as the current selection.
func (d *Desk) SelectPosition(positionID string) error {
	return d.positions.Select(positionID)
}

// Stats exposes the derived aggregates for UI subscribers.
func (d *Desk) Stats() domain.PositionStats {
	return d.positions.Stats()
}
