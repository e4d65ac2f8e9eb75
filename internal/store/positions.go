// Package store holds the in-memory canonical state shared by the job
// tracker, push channel, and service facade. Stores are the only shared
// mutable resources in the process; all mutation goes through their methods
// and derived aggregates are recomputed inside the same critical section.
package store

import (
	"sync"

	"github.com/joasgard/basisdesk/internal/domain"
)

// Subscriber is notified after every mutation with a snapshot of the derived
// aggregates. Subscribers must not call back into the store.
type Subscriber func(stats domain.PositionStats)

// Positions is the canonical in-memory position collection. The job tracker
// and the push channel both write to it; writes are applied in arrival order
// (last write wins per field) because both sources converge on the same
// server-side truth.
type Positions struct {
	mu          sync.RWMutex
	byID        map[string]*domain.Position
	order       []string // insertion order, for stable listing
	stats       domain.PositionStats
	selectedID  string
	subscribers []Subscriber
}

// NewPositions creates an empty position store.
func NewPositions() *Positions {
	return &Positions{byID: make(map[string]*domain.Position)}
}

// Subscribe registers a callback invoked after every mutation.
func (s *Positions) Subscribe(fn Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// SetAll replaces the whole collection, e.g. on a full refresh from the
// engine. Closed positions not present in the new list are pruned here and
// nowhere else.
func (s *Positions) SetAll(positions []domain.Position) {
	s.mu.Lock()
	s.byID = make(map[string]*domain.Position, len(positions))
	s.order = s.order[:0]
	for i := range positions {
		p := positions[i]
		if _, dup := s.byID[p.ID]; dup {
			continue
		}
		s.byID[p.ID] = &p
		s.order = append(s.order, p.ID)
	}
	if _, ok := s.byID[s.selectedID]; !ok {
		s.selectedID = ""
	}
	s.recalcLocked()
	subs, stats := s.subscribers, s.stats
	s.mu.Unlock()

	notify(subs, stats)
}

// Add inserts a new position. Adding an existing id returns
// domain.ErrAlreadyExists; callers wanting a merge use Update.
func (s *Positions) Add(pos domain.Position) error {
	s.mu.Lock()
	if _, ok := s.byID[pos.ID]; ok {
		s.mu.Unlock()
		return domain.ErrAlreadyExists
	}
	p := pos
	s.byID[pos.ID] = &p
	s.order = append(s.order, pos.ID)
	s.recalcLocked()
	subs, stats := s.subscribers, s.stats
	s.mu.Unlock()

	notify(subs, stats)
	return nil
}

// Update merges a shallow patch into the position with the given id. Fields
// not set in the patch keep their stored values; in particular, status only
// changes when the patch carries one.
func (s *Positions) Update(id string, patch domain.PositionPatch) error {
	s.mu.Lock()
	pos, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return domain.ErrNotFound
	}
	patch.Apply(pos)
	s.recalcLocked()
	subs, stats := s.subscribers, s.stats
	s.mu.Unlock()

	notify(subs, stats)
	return nil
}

// Remove deletes a position from the collection. Removing an unknown id is a
// no-op.
func (s *Positions) Remove(id string) {
	s.mu.Lock()
	if _, ok := s.byID[id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.byID, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.selectedID == id {
		s.selectedID = ""
	}
	s.recalcLocked()
	subs, stats := s.subscribers, s.stats
	s.mu.Unlock()

	notify(subs, stats)
}

// Select marks a position as the current UI selection.
func (s *Positions) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return domain.ErrNotFound
	}
	s.selectedID = id
	return nil
}

// Selected returns the currently selected position, if any.
func (s *Positions) Selected() (domain.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.byID[s.selectedID]
	if !ok {
		return domain.Position{}, false
	}
	return *pos, true
}

// Get returns a copy of the position with the given id.
func (s *Positions) Get(id string) (domain.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.byID[id]
	if !ok {
		return domain.Position{}, false
	}
	return *pos, true
}

// List returns copies of all positions in insertion order.
func (s *Positions) List() []domain.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Position, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.byID[id])
	}
	return out
}

// Stats returns the derived aggregates as of the last mutation.
func (s *Positions) Stats() domain.PositionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// recalcLocked recomputes the aggregates. Caller must hold s.mu.
func (s *Positions) recalcLocked() {
	var stats domain.PositionStats
	for _, pos := range s.byID {
		stats.TotalPnl += pos.PnlUSD
		if pos.Status == domain.PositionStatusOpen {
			stats.OpenCount++
			stats.TotalValue += pos.SizeUSD
		}
	}
	s.stats = stats
}

func notify(subs []Subscriber, stats domain.PositionStats) {
	for _, fn := range subs {
		fn(stats)
	}
}
