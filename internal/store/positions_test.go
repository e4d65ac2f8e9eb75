package store

import (
	"errors"
	"testing"

	"github.com/joasgard/basisdesk/internal/domain"
)

func strPtr(s domain.PositionStatus) *domain.PositionStatus { return &s }
func f64Ptr(f float64) *float64                             { return &f }

func TestPositions_Aggregates(t *testing.T) {
	s := NewPositions()
	s.SetAll([]domain.Position{
		{ID: "a", Status: domain.PositionStatusOpen, SizeUSD: 1000, PnlUSD: 25},
		{ID: "b", Status: domain.PositionStatusOpen, SizeUSD: 500, PnlUSD: -10},
		{ID: "c", Status: domain.PositionStatusClosed, SizeUSD: 300, PnlUSD: 7},
		{ID: "d", Status: domain.PositionStatusClosing, SizeUSD: 200, PnlUSD: 3},
	})

	stats := s.Stats()
	if stats.OpenCount != 2 {
		t.Errorf("OpenCount = %d, want 2", stats.OpenCount)
	}
	// Only open positions count toward total value.
	if stats.TotalValue != 1500 {
		t.Errorf("TotalValue = %v, want 1500", stats.TotalValue)
	}
	// PnL spans all positions regardless of status.
	if stats.TotalPnl != 25 {
		t.Errorf("TotalPnl = %v, want 25", stats.TotalPnl)
	}
}

func TestPositions_UpdateMergesShallow(t *testing.T) {
	s := NewPositions()
	if err := s.Add(domain.Position{
		ID:       "pos_1",
		Asset:    "SOL",
		Status:   domain.PositionStatusOpen,
		SizeUSD:  1000,
		Leverage: 3,
	}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if err := s.Update("pos_1", domain.PositionPatch{PnlUSD: f64Ptr(12.5)}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	pos, ok := s.Get("pos_1")
	if !ok {
		t.Fatal("position missing after update")
	}
	if pos.PnlUSD != 12.5 {
		t.Errorf("PnlUSD = %v, want 12.5", pos.PnlUSD)
	}
	// Unset patch fields keep their stored values.
	if pos.SizeUSD != 1000 || pos.Leverage != 3 || pos.Asset != "SOL" {
		t.Errorf("unrelated fields changed: %+v", pos)
	}
	if pos.Status != domain.PositionStatusOpen {
		t.Errorf("status changed without an explicit patch: %s", pos.Status)
	}
}

func TestPositions_ClosedStaysClosedWithoutExplicitStatus(t *testing.T) {
	s := NewPositions()
	_ = s.Add(domain.Position{ID: "p", Status: domain.PositionStatusClosed, SizeUSD: 100})

	// A late pnl update for a closed position must not resurrect it.
	if err := s.Update("p", domain.PositionPatch{PnlUSD: f64Ptr(1)}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	pos, _ := s.Get("p")
	if pos.Status != domain.PositionStatusClosed {
		t.Errorf("status = %s, want closed", pos.Status)
	}
	if got := s.Stats().TotalValue; got != 0 {
		t.Errorf("closed position counted into TotalValue: %v", got)
	}

	// Explicit status changes are honored.
	if err := s.Update("p", domain.PositionPatch{Status: strPtr(domain.PositionStatusOpen)}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if got := s.Stats().TotalValue; got != 100 {
		t.Errorf("TotalValue = %v after explicit reopen, want 100", got)
	}
}

func TestPositions_AddDuplicateAndUpdateMissing(t *testing.T) {
	s := NewPositions()
	_ = s.Add(domain.Position{ID: "x"})

	if err := s.Add(domain.Position{ID: "x"}); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("Add duplicate: got %v, want ErrAlreadyExists", err)
	}
	if err := s.Update("missing", domain.PositionPatch{}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Update missing: got %v, want ErrNotFound", err)
	}
}

func TestPositions_SubscribersSeeEveryMutation(t *testing.T) {
	s := NewPositions()
	var seen []domain.PositionStats
	s.Subscribe(func(stats domain.PositionStats) { seen = append(seen, stats) })

	_ = s.Add(domain.Position{ID: "a", Status: domain.PositionStatusOpen, SizeUSD: 50})
	_ = s.Update("a", domain.PositionPatch{SizeUSD: f64Ptr(75)})
	s.Remove("a")

	if len(seen) != 3 {
		t.Fatalf("subscriber called %d times, want 3", len(seen))
	}
	if seen[0].TotalValue != 50 || seen[1].TotalValue != 75 || seen[2].TotalValue != 0 {
		t.Errorf("subscriber snapshots wrong: %+v", seen)
	}
}

func TestPositions_SetAllPrunesAndResetsSelection(t *testing.T) {
	s := NewPositions()
	_ = s.Add(domain.Position{ID: "old", Status: domain.PositionStatusClosed})
	if err := s.Select("old"); err != nil {
		t.Fatalf("Select failed: %v", err)
	}

	s.SetAll([]domain.Position{{ID: "new", Status: domain.PositionStatusOpen, SizeUSD: 10}})

	if _, ok := s.Get("old"); ok {
		t.Error("full refresh should prune positions absent from the new list")
	}
	if _, ok := s.Selected(); ok {
		t.Error("selection should reset when the selected position is pruned")
	}
	if got := s.Stats().OpenCount; got != 1 {
		t.Errorf("OpenCount = %d, want 1", got)
	}
}
