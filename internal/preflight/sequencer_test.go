package preflight

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/joasgard/basisdesk/internal/domain"
	"github.com/joasgard/basisdesk/internal/notify"
)

type fakeValidator struct {
	results []domain.CheckResult
	err     error
	calls   int
}

func (f *fakeValidator) Validate(ctx context.Context, asset string, leverage, sizeUSD float64) ([]domain.CheckResult, error) {
	f.calls++
	return f.results, f.err
}

func allPassed() []domain.CheckResult {
	out := make([]domain.CheckResult, 0, len(domain.PreflightKeys))
	for _, k := range domain.PreflightKeys {
		out = append(out, domain.CheckResult{Key: k.Key, Passed: true})
	}
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestSequencer disables the reveal staggers so tests assert outcomes
// without depending on timer values.
func newTestSequencer(v Validator) (*Sequencer, *notify.Center) {
	center := notify.NewCenter(nil, testLogger())
	return NewSequencer(v, center, 0, 0, testLogger()), center
}

func TestSequencer_AllPassedInvokesCallbackOnce(t *testing.T) {
	v := &fakeValidator{results: allPassed()}
	s, center := newTestSequencer(v)

	fired := 0
	if err := s.Run(context.Background(), "SOL", 3, 1000, func() { fired++ }); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if fired != 1 {
		t.Errorf("callback fired %d times, want 1", fired)
	}
	if s.Outcome() != OutcomePassed {
		t.Errorf("outcome = %s, want passed", s.Outcome())
	}
	for _, c := range s.Checks() {
		if c.Status != domain.CheckStatusPassed {
			t.Errorf("check %s = %s, want passed", c.Key, c.Status)
		}
		if !c.Visible {
			t.Errorf("check %s not revealed", c.Key)
		}
	}
	if len(center.Live()) != 0 {
		t.Errorf("unexpected notifications on success: %+v", center.Live())
	}
}

func TestSequencer_BatchErrorFailsEveryCheck(t *testing.T) {
	v := &fakeValidator{err: errors.New("dial tcp: connection refused")}
	s, center := newTestSequencer(v)

	fired := 0
	err := s.Run(context.Background(), "SOL", 3, 1000, func() { fired++ })
	if !errors.Is(err, domain.ErrPreflightFailed) {
		t.Fatalf("err = %v, want ErrPreflightFailed", err)
	}
	if fired != 0 {
		t.Errorf("callback fired %d times on batch error", fired)
	}

	checks := s.Checks()
	if len(checks) != len(domain.PreflightKeys) {
		t.Fatalf("got %d checks, want %d", len(checks), len(domain.PreflightKeys))
	}
	for _, c := range checks {
		if c.Status != domain.CheckStatusFailed {
			t.Errorf("check %s = %s, want failed", c.Key, c.Status)
		}
		if c.Error != "connection error" {
			t.Errorf("check %s error = %q, want generic connection error", c.Key, c.Error)
		}
	}
	if s.Outcome() != OutcomeFailed {
		t.Errorf("outcome = %s, want failed", s.Outcome())
	}
	if len(center.Live()) != 1 {
		t.Errorf("got %d notifications, want 1", len(center.Live()))
	}
}

func TestSequencer_SingleFailureFailsTheRun(t *testing.T) {
	results := allPassed()
	results[3] = domain.CheckResult{Key: results[3].Key, Passed: false, Error: "utilization at 98%"}
	v := &fakeValidator{results: results}
	s, _ := newTestSequencer(v)

	err := s.Run(context.Background(), "SOL", 3, 1000, func() { t.Error("callback fired on failed run") })
	if !errors.Is(err, domain.ErrPreflightFailed) {
		t.Fatalf("err = %v, want ErrPreflightFailed", err)
	}

	checks := s.Checks()
	if checks[3].Status != domain.CheckStatusFailed || checks[3].Error != "utilization at 98%" {
		t.Errorf("failed check not surfaced: %+v", checks[3])
	}
	for i, c := range checks {
		if i != 3 && c.Status != domain.CheckStatusPassed {
			t.Errorf("check %s = %s, want passed", c.Key, c.Status)
		}
	}
}

func TestSequencer_MissingVerdictCountsAsFailed(t *testing.T) {
	// Engine returned verdicts for all but the last key.
	v := &fakeValidator{results: allPassed()[:len(domain.PreflightKeys)-1]}
	s, _ := newTestSequencer(v)

	if err := s.Run(context.Background(), "SOL", 3, 1000, nil); !errors.Is(err, domain.ErrPreflightFailed) {
		t.Fatalf("err = %v, want ErrPreflightFailed", err)
	}
	checks := s.Checks()
	last := checks[len(checks)-1]
	if last.Status != domain.CheckStatusFailed {
		t.Errorf("missing verdict: status = %s, want failed", last.Status)
	}
}

func TestSequencer_RetryStartsCleanBatch(t *testing.T) {
	v := &fakeValidator{err: errors.New("timeout")}
	s, _ := newTestSequencer(v)

	if err := s.Run(context.Background(), "SOL", 3, 1000, nil); err == nil {
		t.Fatal("expected first run to fail")
	}

	// Retry after the transient error clears.
	v.err = nil
	v.results = allPassed()

	fired := 0
	if err := s.Run(context.Background(), "SOL", 3, 1000, func() { fired++ }); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if fired != 1 {
		t.Errorf("callback fired %d times, want 1", fired)
	}
	if v.calls != 2 {
		t.Errorf("validator called %d times, want 2 (fresh batch per retry)", v.calls)
	}
	for _, c := range s.Checks() {
		if c.Status != domain.CheckStatusPassed || c.Error != "" {
			t.Errorf("stale state leaked into retry batch: %+v", c)
		}
	}
}
