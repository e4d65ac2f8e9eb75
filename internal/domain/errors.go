package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrPreflightFailed  = errors.New("preflight validation failed")
	ErrChannelClosed    = errors.New("push channel closed")
	ErrJobFailed        = errors.New("job failed")
	ErrInvalidOrder     = errors.New("invalid order parameters")
	ErrContextDone      = errors.New("context cancelled")
)
