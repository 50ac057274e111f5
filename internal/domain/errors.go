package domain

import "errors"

// Domain errors.
var (
	ErrTaskNotFound         = errors.New("task not found")
	ErrEntryNotFound        = errors.New("time entry not found")
	ErrSessionNotFound      = errors.New("no valid session")
	ErrTimerAlreadyRunning  = errors.New("a timer is already running")
	ErrTimerNotRunning      = errors.New("timer is not running")
	ErrAuthenticationFailed = errors.New("remote authentication failed")
	ErrSessionExpired       = errors.New("remote session expired")
	ErrSessionConflict      = errors.New("active session already exists")
	ErrRemoteUnavailable    = errors.New("remote system unavailable")
	ErrValidation           = errors.New("validation failed")
	ErrMissingCredentials   = errors.New("remote credentials not configured")
)
