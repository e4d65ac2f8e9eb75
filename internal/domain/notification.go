package domain

import "time"

// NotificationKind classifies user-facing notifications.
type NotificationKind string

const (
	NotificationSuccess NotificationKind = "success"
	NotificationError   NotificationKind = "error"
	NotificationWarning NotificationKind = "warning"
	NotificationInfo    NotificationKind = "info"
)

// Notification is a user-facing event produced by the job tracker, push
// channel, or preflight sequencer. Non-persistent notifications auto-expire
// after Lifetime; persistent ones stay until explicitly dismissed.
type Notification struct {
	ID         string
	Kind       NotificationKind
	Title      string
	Message    string
	Code       string // engine error code, if any
	DocsURL    string
	Persistent bool
	Lifetime   time.Duration
	CreatedAt  time.Time
}
