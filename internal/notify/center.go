package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/joasgard/basisdesk/internal/domain"
	"github.com/joasgard/basisdesk/internal/sched"
)

// Center is the in-app notification surface. It holds live notifications,
// auto-dismisses non-persistent ones after their lifetime, and forwards error
// and persistent notifications to the outbound notifier when one is
// configured.
type Center struct {
	mu       sync.Mutex
	live     map[string]domain.Notification
	order    []string
	timers   *sched.Timers
	outbound *Notifier           // optional
	journal  domain.JournalStore // optional
	logger   *slog.Logger
}

// NewCenter creates a Center. outbound may be nil when no operator channels
// are configured.
func NewCenter(outbound *Notifier, logger *slog.Logger) *Center {
	return &Center{
		live:     make(map[string]domain.Notification),
		timers:   sched.NewTimers(),
		outbound: outbound,
		logger:   logger.With(slog.String("component", "notification_center")),
	}
}

// SetJournal installs a journal store; persistent notifications are recorded
// there. Must be called before the center is shared across goroutines.
func (c *Center) SetJournal(j domain.JournalStore) {
	c.journal = j
}

// Push adds a notification and schedules its expiry. Error and persistent
// notifications are also dispatched to operator channels; persistent ones are
// additionally journaled.
func (c *Center) Push(ctx context.Context, n domain.Notification) {
	c.mu.Lock()
	c.live[n.ID] = n
	c.order = append(c.order, n.ID)
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "notification",
		slog.String("kind", string(n.Kind)),
		slog.String("title", n.Title),
		slog.String("code", n.Code),
	)

	if !n.Persistent && n.Lifetime > 0 {
		c.timers.AfterFunc(n.ID, n.Lifetime, func() { c.Dismiss(n.ID) })
	}

	if n.Persistent && c.journal != nil {
		if err := c.journal.Record(ctx, "channel_gave_up", map[string]any{
			"title":   n.Title,
			"message": n.Message,
		}); err != nil {
			c.logger.WarnContext(ctx, "journal write failed",
				slog.String("error", err.Error()),
			)
		}
	}

	if c.outbound != nil && (n.Kind == domain.NotificationError || n.Persistent) {
		event := "error"
		if n.Persistent {
			event = "channel_gave_up"
		}
		if err := c.outbound.Notify(ctx, event, n.Title, n.Message); err != nil {
			c.logger.WarnContext(ctx, "outbound dispatch failed",
				slog.String("error", err.Error()),
			)
		}
	}
}

// Dismiss removes a notification, cancelling its expiry timer if still
// pending. Unknown ids are ignored.
func (c *Center) Dismiss(id string) {
	c.timers.Cancel(id)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.live[id]; !ok {
		return
	}
	delete(c.live, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Live returns the current notifications in arrival order.
func (c *Center) Live() []domain.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Notification, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.live[id])
	}
	return out
}

// Close cancels all pending expiry timers.
func (c *Center) Close() {
	c.timers.CancelAll()
}
