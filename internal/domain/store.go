package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// JournalEntry is one row of the append-only trade journal.
type JournalEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// JournalStore persists position lifecycle events (opens, closes, job
// failures, channel exhaustion) for later inspection.
type JournalStore interface {
	Record(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]JournalEntry, error)
}
