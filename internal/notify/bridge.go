package notify

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/joasgard/basisdesk/internal/domain"
)

// Default notification lifetimes. Persistent notifications ignore these and
// stay until explicitly dismissed.
const (
	successLifetime = 5 * time.Second
	infoLifetime    = 5 * time.Second
	warningLifetime = 8 * time.Second
	errorLifetime   = 10 * time.Second
)

// The bridge maps outcomes from the job tracker, push channel, and preflight
// sequencer to notification records. It is pure: every function builds a
// record, nothing here talks to the network or the center. Error codes are
// resolved through the shared taxonomy so the same engine code always renders
// identically regardless of which component surfaced it.

// PositionOpened announces a successfully opened position.
func PositionOpened(pos domain.Position) domain.Notification {
	return domain.Notification{
		ID:        uuid.NewString(),
		Kind:      domain.NotificationSuccess,
		Title:     "Position opened",
		Message:   fmt.Sprintf("%s position for $%.2f at %.1fx is now open.", pos.Asset, pos.SizeUSD, pos.Leverage),
		Lifetime:  successLifetime,
		CreatedAt: time.Now().UTC(),
	}
}

// PositionClosed announces a successfully closed position.
func PositionClosed(positionID string) domain.Notification {
	return domain.Notification{
		ID:        uuid.NewString(),
		Kind:      domain.NotificationSuccess,
		Title:     "Position closed",
		Message:   fmt.Sprintf("Position %s has been closed.", positionID),
		Lifetime:  successLifetime,
		CreatedAt: time.Now().UTC(),
	}
}

// JobFailed maps a failed job to an error notification. Known engine codes
// resolve through the taxonomy; otherwise the raw engine message is shown.
func JobFailed(job domain.Job) domain.Notification {
	n := domain.Notification{
		ID:        uuid.NewString(),
		Kind:      domain.NotificationError,
		Lifetime:  errorLifetime,
		CreatedAt: time.Now().UTC(),
	}
	if info, ok := domain.ResolveError(job.ErrorCode); ok {
		n.Code = info.Code
		n.Title = info.Title
		n.Message = info.Description
		n.DocsURL = info.DocsURL
		return n
	}
	n.Title = fmt.Sprintf("%s request failed", job.Kind)
	n.Message = job.ErrorMessage
	if n.Message == "" {
		n.Message = "The engine reported a failure without detail."
	}
	return n
}

// NotConnected is surfaced when an action is rejected before any network call
// because no authenticated session exists.
func NotConnected() domain.Notification {
	info, _ := domain.ResolveError("AUTH-0001")
	return domain.Notification{
		ID:        uuid.NewString(),
		Kind:      domain.NotificationError,
		Code:      info.Code,
		Title:     info.Title,
		Message:   info.Description,
		DocsURL:   info.DocsURL,
		Lifetime:  errorLifetime,
		CreatedAt: time.Now().UTC(),
	}
}

// ChannelGaveUp is the persistent notification emitted when the push channel
// exhausts its reconnect attempts.
func ChannelGaveUp() domain.Notification {
	return domain.Notification{
		ID:         uuid.NewString(),
		Kind:       domain.NotificationError,
		Title:      "Live updates unavailable",
		Message:    "Lost connection to the engine and could not reconnect. Refresh to resume live updates.",
		Persistent: true,
		CreatedAt:  time.Now().UTC(),
	}
}

// PreflightFailed summarizes a failed validation batch.
func PreflightFailed(checks []domain.PreflightCheck) domain.Notification {
	failed := 0
	detail := ""
	for _, c := range checks {
		if c.Status == domain.CheckStatusFailed {
			failed++
			if detail == "" {
				detail = c.Label
				if c.Error != "" {
					detail += ": " + c.Error
				}
			}
		}
	}
	return domain.Notification{
		ID:        uuid.NewString(),
		Kind:      domain.NotificationWarning,
		Title:     "Pre-trade checks failed",
		Message:   fmt.Sprintf("%d of %d checks failed. %s", failed, len(checks), detail),
		Lifetime:  warningLifetime,
		CreatedAt: time.Now().UTC(),
	}
}

// AllocationSkewed warns that the fee model produced a residual delta large
// enough to matter. The allocation is still shown; the warning surfaces the
// diagnostic instead of hiding it.
func AllocationSkewed(alloc domain.Allocation) domain.Notification {
	return domain.Notification{
		ID:        uuid.NewString(),
		Kind:      domain.NotificationWarning,
		Title:     "Allocation not delta-neutral",
		Message:   fmt.Sprintf("Residual exposure of $%.2f after fees; check fee configuration.", alloc.NetDelta),
		Lifetime:  warningLifetime,
		CreatedAt: time.Now().UTC(),
	}
}
