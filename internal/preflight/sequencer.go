// Package preflight runs the ordered pre-trade validation sequence that
// gates every open request. The verdicts come from one batched engine call;
// the staged reveal is a pure display concern driven by configurable delays
// and has no effect on the pass/fail outcome.
package preflight

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/joasgard/basisdesk/internal/domain"
	"github.com/joasgard/basisdesk/internal/notify"
)

// Validator runs the batched validation for a proposed order.
type Validator interface {
	Validate(ctx context.Context, asset string, leverage, sizeUSD float64) ([]domain.CheckResult, error)
}

// Outcome is the terminal state of one sequence run.
type Outcome string

const (
	OutcomeIdle    Outcome = "idle"
	OutcomeRunning Outcome = "running"
	OutcomePassed  Outcome = "passed"
	OutcomeFailed  Outcome = "failed"
)

// Default per-index reveal delays.
const (
	DefaultRevealStagger = 100 * time.Millisecond
	DefaultResultStagger = 200 * time.Millisecond
)

// Sequencer owns the check batch of the current open attempt. Every Run
// starts from a clean batch; nothing leaks across retries.
type Sequencer struct {
	validator     Validator
	center        *notify.Center
	revealStagger time.Duration
	resultStagger time.Duration
	logger        *slog.Logger

	mu      sync.Mutex
	checks  []domain.PreflightCheck
	outcome Outcome
	run     int64 // generation counter; stale reveal timers compare against it
}

// NewSequencer creates a Sequencer. Negative stagger values select the
// defaults; zero disables staging entirely, which is what tests and headless
// mode use.
func NewSequencer(validator Validator, center *notify.Center, revealStagger, resultStagger time.Duration, logger *slog.Logger) *Sequencer {
	if revealStagger < 0 {
		revealStagger = DefaultRevealStagger
	}
	if resultStagger < 0 {
		resultStagger = DefaultResultStagger
	}
	return &Sequencer{
		validator:     validator,
		center:        center,
		revealStagger: revealStagger,
		resultStagger: resultStagger,
		logger:        logger.With(slog.String("component", "preflight")),
		outcome:       OutcomeIdle,
	}
}

// Outcome returns the state of the most recent run.
func (s *Sequencer) Outcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// Checks returns a snapshot of the current batch.
func (s *Sequencer) Checks() []domain.PreflightCheck {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.PreflightCheck, len(s.checks))
	copy(out, s.checks)
	return out
}

// Run executes one full validation sequence for the proposed order and
// blocks until the batch reaches a terminal outcome. onPassed is invoked
// exactly once if and only if every check passed. A failed run returns
// domain.ErrPreflightFailed; the caller retries by calling Run again, which
// always starts a fresh batch.
func (s *Sequencer) Run(ctx context.Context, asset string, leverage, sizeUSD float64, onPassed func()) error {
	gen := s.reset()

	// Stage the pending checks into view. Purely cosmetic: the validation
	// request below does not wait for it.
	if s.revealStagger > 0 {
		go s.revealPending(gen)
	} else {
		s.revealAllPending(gen)
	}

	results, err := s.validator.Validate(ctx, asset, leverage, sizeUSD)
	if err != nil {
		s.logger.WarnContext(ctx, "preflight batch request failed",
			slog.String("asset", asset),
			slog.String("error", err.Error()),
		)
		s.failAll(gen, "connection error")
		s.center.Push(ctx, notify.PreflightFailed(s.Checks()))
		return fmt.Errorf("preflight: batch validation: %w", domain.ErrPreflightFailed)
	}

	byKey := make(map[string]domain.CheckResult, len(results))
	for _, r := range results {
		byKey[r.Key] = r
	}

	// Reveal verdicts in order. The stagger spaces them out for the UI but
	// never changes which checks passed.
	allPassed := true
	for i := range domain.PreflightKeys {
		if s.resultStagger > 0 && i > 0 {
			time.Sleep(s.resultStagger)
		}
		result, ok := byKey[domain.PreflightKeys[i].Key]
		passed := ok && result.Passed
		if !passed {
			allPassed = false
		}
		s.applyResult(gen, i, passed, result.Error)
	}

	if !allPassed {
		s.setOutcome(gen, OutcomeFailed)
		s.center.Push(ctx, notify.PreflightFailed(s.Checks()))
		return fmt.Errorf("preflight: checks failed: %w", domain.ErrPreflightFailed)
	}

	s.setOutcome(gen, OutcomePassed)
	s.logger.InfoContext(ctx, "preflight passed", slog.String("asset", asset))
	if onPassed != nil {
		onPassed()
	}
	return nil
}

// reset installs a fresh pending batch and bumps the generation so reveal
// timers from an earlier run cannot touch it.
func (s *Sequencer) reset() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run++
	s.outcome = OutcomeRunning
	s.checks = make([]domain.PreflightCheck, len(domain.PreflightKeys))
	for i, k := range domain.PreflightKeys {
		s.checks[i] = domain.PreflightCheck{
			Key:    k.Key,
			Label:  k.Label,
			Status: domain.CheckStatusPending,
		}
	}
	return s.run
}

func (s *Sequencer) revealPending(gen int64) {
	for i := range domain.PreflightKeys {
		if i > 0 {
			time.Sleep(s.revealStagger)
		}
		s.mu.Lock()
		if s.run == gen {
			s.checks[i].Visible = true
		}
		s.mu.Unlock()
	}
}

func (s *Sequencer) revealAllPending(gen int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run != gen {
		return
	}
	for i := range s.checks {
		s.checks[i].Visible = true
	}
}

func (s *Sequencer) applyResult(gen int64, idx int, passed bool, errText string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run != gen {
		return
	}
	s.checks[idx].Visible = true
	if passed {
		s.checks[idx].Status = domain.CheckStatusPassed
		return
	}
	s.checks[idx].Status = domain.CheckStatusFailed
	if errText == "" {
		errText = "check failed"
	}
	s.checks[idx].Error = errText
}

// failAll marks the whole batch failed with one shared reason; used when the
// batch request itself never produced verdicts.
func (s *Sequencer) failAll(gen int64, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run != gen {
		return
	}
	s.outcome = OutcomeFailed
	for i := range s.checks {
		s.checks[i].Visible = true
		s.checks[i].Status = domain.CheckStatusFailed
		s.checks[i].Error = reason
	}
}

func (s *Sequencer) setOutcome(gen int64, outcome Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run != gen {
		return
	}
	s.outcome = outcome
}
