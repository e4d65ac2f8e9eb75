package domain

import "time"

// JobKind distinguishes open and close requests.
type JobKind string

const (
	JobKindOpen  JobKind = "open"
	JobKindClose JobKind = "close"
)

// JobStatus is the engine-reported state of an asynchronous job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether no further automatic transition can occur.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// Job is a backend-tracked asynchronous unit of work representing an open or
// close request. PositionID is present once the engine has assigned one;
// ErrorCode and ErrorMessage are present only when the job failed.
type Job struct {
	ID           string
	Kind         JobKind
	Status       JobStatus
	PositionID   string
	ErrorCode    string
	ErrorMessage string
	CreatedAt    time.Time
	CompletedAt  *time.Time
}
