package domain

import (
	"context"
	"time"
)

// StoreInitializer initializes the data store.
type StoreInitializer interface {
	// Initialize creates the store schema if it doesn't exist.
	Initialize() error
}

// SessionRepository manages session persistence. The store is the sole
// arbiter of the "one active session per user" invariant.
type SessionRepository interface {
	// ActiveByUser retrieves the active unexpired session for a user.
	// Returns nil if none exists.
	ActiveByUser(userID string, now time.Time) (*Session, error)

	// ReplaceActive atomically deactivates any active session for the
	// user and inserts the new one. A concurrent loser receives
	// ErrSessionConflict and must re-read.
	ReplaceActive(s *Session) error

	// Touch updates lastUsed. Best-effort; callers ignore failures.
	Touch(id string, at time.Time) error

	// Extend pushes out the expiry of the user's active session.
	Extend(userID string, until, at time.Time) error

	// DeactivateByUser deactivates all active sessions for a user.
	// Returns the number deactivated.
	DeactivateByUser(userID string) (int, error)

	// Reap deletes sessions that are inactive or past expiry.
	// Returns the number removed.
	Reap(now time.Time) (int, error)
}

// TaskFilter specifies criteria for listing cached tasks.
type TaskFilter struct {
	Status          *Status
	Priority        *Priority
	ProjectID       string
	IncludeInactive bool
}

// Page specifies pagination. Zero values fall back to defaults at the store.
type Page struct {
	Number int // 1-based page number
	Size   int
}

// TaskRepository manages cached task persistence and search.
type TaskRepository interface {
	// Get retrieves a task by local ID. Returns nil if not found.
	Get(id string) (*Task, error)

	// GetByRemoteID retrieves a task by (user, remote task id).
	// Returns nil if not found.
	GetByRemoteID(userID, remoteTaskID string) (*Task, error)

	// Save creates or updates a task. The (user, remote task id)
	// uniqueness is enforced by the store.
	Save(task *Task) error

	// Find retrieves tasks matching the filter, sorted by due date
	// ascending, then priority descending, then creation descending.
	// Returns the page of tasks and the unpaged total.
	Find(userID string, filter TaskFilter, page Page) ([]*Task, int, error)

	// Search performs a ranked full-text match over title, description
	// and tags of the user's active tasks.
	Search(userID, query string) ([]*Task, error)

	// Stale retrieves active tasks last synced before the threshold.
	Stale(userID string, olderThan time.Time) ([]*Task, error)

	// ActiveRemoteIDs lists remote IDs of the user's active tasks.
	ActiveRemoteIDs(userID string) ([]string, error)

	// Deactivate soft-deletes a task.
	Deactivate(id string) error

	// AddLoggedMinutes accumulates logged time on a task.
	AddLoggedMinutes(id string, minutes int) error
}

// EntryFilter specifies criteria for listing time entries.
type EntryFilter struct {
	TaskID    string
	IsRunning *bool
	IsSynced  *bool
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

// TimeStats aggregates stopped entries for a user.
type TimeStats struct {
	TotalEntries  int
	TotalMinutes  int
	AvgMinutes    float64
	SyncedEntries int
}

// DailyStat is one day's rollup of tracked time.
type DailyStat struct {
	Day          string // YYYY-MM-DD
	TotalMinutes int
	EntryCount   int
}

// TaskStats aggregates stopped entries for one task.
type TaskStats struct {
	FirstStart   *time.Time
	LastEnd      *time.Time
	TotalMinutes int
	EntryCount   int
	AvgMinutes   float64
}

// TimeEntryRepository manages time entry persistence. The store is the
// sole arbiter of the "one running timer per user" invariant.
type TimeEntryRepository interface {
	// Get retrieves an entry by ID. Returns nil if not found.
	Get(id string) (*TimeEntry, error)

	// Running retrieves the user's running entry. Returns nil if none.
	Running(userID string) (*TimeEntry, error)

	// InsertRunning inserts a new running entry. A concurrent second
	// running entry for the same user fails with ErrTimerAlreadyRunning.
	InsertRunning(e *TimeEntry) error

	// Save updates an existing entry.
	Save(e *TimeEntry) error

	// List retrieves entries for a user, newest start first.
	List(userID string, filter EntryFilter) ([]*TimeEntry, error)

	// Unsynced retrieves stopped, unsynced entries, oldest end first.
	Unsynced(limit int) ([]*TimeEntry, error)

	// Stats aggregates the user's stopped entries.
	Stats(userID string, from, to *time.Time) (*TimeStats, error)

	// DailyStats rolls up stopped entries per day since the given time.
	DailyStats(userID string, since time.Time) ([]DailyStat, error)

	// TaskStats aggregates stopped entries for one task.
	TaskStats(taskID string) (*TaskStats, error)
}

// LoginResult carries the outcome of a successful remote login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
}

// RemoteClient talks to the remote task-management system. Implementations
// must honor context deadlines; a timeout is reported as ErrRemoteUnavailable.
type RemoteClient interface {
	// Login authenticates and returns a session token with its expiry.
	Login(ctx context.Context, creds Credentials) (*LoginResult, error)

	// ListTasks fetches the user's tasks from the remote system.
	ListTasks(ctx context.Context, token string) ([]RemoteTask, error)

	// StartTimer starts a remote timer and returns the remote timer ID.
	StartTimer(ctx context.Context, token, remoteTaskID string) (string, error)

	// StopTimer stops a remote timer, attaching notes.
	StopTimer(ctx context.Context, token, remoteTimerID, notes string) error
}

// Logger is the application logging port.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ConfigLoader loads configuration from files.
type ConfigLoader interface {
	// Load returns the merged configuration (local + global + defaults).
	Load() (*Config, error)
}

// Clock provides time operations for testability.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// RealClock implements Clock using the system clock.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time {
	return time.Now()
}
