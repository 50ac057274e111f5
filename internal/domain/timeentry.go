package domain

import (
	"fmt"
	"math"
	"time"
)

// MaxNotesLen caps time entry notes, mirroring the remote schema.
const MaxNotesLen = 2000

// SyncState describes where a time entry sits in the sync lifecycle.
type SyncState string

const (
	SyncStateRunning SyncState = "running" // Timer still running, nothing to push
	SyncStatePending SyncState = "pending" // Stopped, not yet pushed
	SyncStateError   SyncState = "error"   // Last push failed, awaiting retry
	SyncStateSynced  SyncState = "synced"  // Pushed and acknowledged
)

// TimeEntry is one interval of tracked work, local or remote-synced.
// Fields are ordered to minimize memory padding.
type TimeEntry struct {
	Created         time.Time  `json:"created"`
	StartTime       time.Time  `json:"startTime"`
	EndTime         *time.Time `json:"endTime,omitempty"`
	SyncedAt        *time.Time `json:"syncedAt,omitempty"`
	LastSyncAttempt *time.Time `json:"lastSyncAttempt,omitempty"`
	ID              string     `json:"id"`
	UserID          string     `json:"userId"`
	TaskID          string     `json:"taskId"`
	RemoteTaskID    string     `json:"remoteTaskId"`
	RemoteTimerID   string     `json:"remoteTimerId,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	SyncError       string     `json:"syncError,omitempty"`
	DurationMinutes int        `json:"durationMinutes"`
	IsRunning       bool       `json:"isRunning"`
	IsSynced        bool       `json:"isSynced"`
}

// Validate checks structural invariants of a time entry.
func (e *TimeEntry) Validate() error {
	if e.UserID == "" {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if e.TaskID == "" {
		return fmt.Errorf("%w: task id is required", ErrValidation)
	}
	if e.StartTime.IsZero() {
		return fmt.Errorf("%w: start time is required", ErrValidation)
	}
	if e.EndTime != nil && !e.EndTime.After(e.StartTime) {
		return fmt.Errorf("%w: end time must be after start time", ErrValidation)
	}
	if len(e.Notes) > MaxNotesLen {
		return fmt.Errorf("%w: notes exceed %d characters", ErrValidation, MaxNotesLen)
	}
	if e.EndTime != nil && e.DurationMinutes > 0 {
		computed := MinutesBetween(e.StartTime, *e.EndTime)
		if abs(e.DurationMinutes-computed) > 1 {
			return fmt.Errorf("%w: duration does not match start/end times", ErrValidation)
		}
	}
	return nil
}

// CurrentDuration returns elapsed whole minutes for a running entry,
// or the stored duration once stopped.
func (e *TimeEntry) CurrentDuration(now time.Time) int {
	if !e.IsRunning {
		return e.DurationMinutes
	}
	return MinutesBetween(e.StartTime, now)
}

// State derives the sync lifecycle state of the entry.
func (e *TimeEntry) State() SyncState {
	switch {
	case e.IsRunning:
		return SyncStateRunning
	case e.IsSynced:
		return SyncStateSynced
	case e.SyncError != "":
		return SyncStateError
	default:
		return SyncStatePending
	}
}

// RetryEligible reports whether a failed sync may be retried: either no
// attempt was made yet, or the last attempt is older than the threshold.
func (e *TimeEntry) RetryEligible(now time.Time, minSinceAttempt time.Duration) bool {
	if e.LastSyncAttempt == nil {
		return true
	}
	return !now.Before(e.LastSyncAttempt.Add(minSinceAttempt))
}

// MinutesBetween rounds the interval between two instants to whole minutes.
func MinutesBetween(from, to time.Time) int {
	return int(math.Round(to.Sub(from).Minutes()))
}

// FormatDuration renders minutes as "3h 25m".
func FormatDuration(minutes int) string {
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
