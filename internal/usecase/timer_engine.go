package usecase

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nkondo/timebridge/internal/domain"
)

// TimerEngine enforces the single-running-timer invariant and computes
// durations. Remote interaction is the SyncCoordinator's job; local timing
// state is authoritative regardless of remote outcomes.
type TimerEngine struct {
	entries    domain.TimeEntryRepository
	tasks      domain.TaskRepository
	clock      domain.Clock
	logger     domain.Logger
	retryAfter time.Duration // backoff gate between sync attempts
}

// NewTimerEngine creates a new TimerEngine.
func NewTimerEngine(entries domain.TimeEntryRepository, tasks domain.TaskRepository, clock domain.Clock, logger domain.Logger, retryAfter time.Duration) *TimerEngine {
	if retryAfter <= 0 {
		retryAfter = 5 * time.Minute
	}
	return &TimerEngine{
		entries:    entries,
		tasks:      tasks,
		clock:      clock,
		logger:     logger,
		retryAfter: retryAfter,
	}
}

// Start begins a new running entry for the task. The check for an existing
// running timer and the insert are a single atomic store write; a
// concurrent second caller fails with ErrTimerAlreadyRunning.
func (t *TimerEngine) Start(userID, taskID, notes string) (*domain.TimeEntry, error) {
	task, err := t.tasks.Get(taskID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if task == nil {
		return nil, domain.ErrTaskNotFound
	}

	now := t.clock.Now()
	entry := &domain.TimeEntry{
		ID:           uuid.NewString(),
		UserID:       userID,
		TaskID:       task.ID,
		RemoteTaskID: task.RemoteTaskID,
		StartTime:    now,
		Created:      now,
		Notes:        strings.TrimSpace(notes),
		IsRunning:    true,
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	if err := t.entries.InsertRunning(entry); err != nil {
		return nil, err
	}

	t.logger.Info("timer started", "user", userID, "task", task.RemoteTaskID, "entry", entry.ID)
	return entry, nil
}

// Stop ends a running entry: sets the end time, computes the duration in
// whole minutes, merges notes and leaves the entry pending sync.
func (t *TimerEngine) Stop(entryID, notes string) (*domain.TimeEntry, error) {
	entry, err := t.entries.Get(entryID)
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	if entry == nil {
		return nil, domain.ErrEntryNotFound
	}
	if !entry.IsRunning {
		return nil, domain.ErrTimerNotRunning
	}

	now := t.clock.Now()
	entry.EndTime = &now
	entry.DurationMinutes = domain.MinutesBetween(entry.StartTime, now)
	entry.IsRunning = false
	if notes = strings.TrimSpace(notes); notes != "" {
		entry.Notes = notes
	}

	if err := t.entries.Save(entry); err != nil {
		return nil, fmt.Errorf("save entry: %w", err)
	}

	// Accumulate logged time on the cached task. Best-effort: the stop
	// itself already succeeded.
	if err := t.tasks.AddLoggedMinutes(entry.TaskID, entry.DurationMinutes); err != nil {
		t.logger.Warn("accumulate logged time failed", "task", entry.TaskID, "error", err)
	}

	t.logger.Info("timer stopped", "entry", entry.ID, "minutes", entry.DurationMinutes)
	return entry, nil
}

// Running returns the user's running entry, or nil when none exists.
func (t *TimerEngine) Running(userID string) (*domain.TimeEntry, error) {
	entry, err := t.entries.Running(userID)
	if err != nil {
		return nil, fmt.Errorf("get running entry: %w", err)
	}
	return entry, nil
}

// CurrentDuration returns the entry's elapsed minutes: live for a running
// entry, stored once stopped.
func (t *TimerEngine) CurrentDuration(entry *domain.TimeEntry) int {
	return entry.CurrentDuration(t.clock.Now())
}

// AttachRemoteTimer records the remote timer ID after a successful start
// push. Start-event bookkeeping is separate from final stop-sync.
func (t *TimerEngine) AttachRemoteTimer(entryID, remoteTimerID string) error {
	entry, err := t.entries.Get(entryID)
	if err != nil {
		return fmt.Errorf("get entry: %w", err)
	}
	if entry == nil {
		return domain.ErrEntryNotFound
	}
	entry.RemoteTimerID = remoteTimerID
	entry.SyncError = ""
	if err := t.entries.Save(entry); err != nil {
		return fmt.Errorf("save entry: %w", err)
	}
	return nil
}

// MarkSynced records a successful stop push: isSynced is set, the sync
// error cleared and the remote timer ID recorded when provided.
func (t *TimerEngine) MarkSynced(entryID, remoteTimerID string) error {
	entry, err := t.entries.Get(entryID)
	if err != nil {
		return fmt.Errorf("get entry: %w", err)
	}
	if entry == nil {
		return domain.ErrEntryNotFound
	}

	now := t.clock.Now()
	entry.IsSynced = true
	entry.SyncedAt = &now
	entry.SyncError = ""
	if remoteTimerID != "" {
		entry.RemoteTimerID = remoteTimerID
	}
	if err := t.entries.Save(entry); err != nil {
		return fmt.Errorf("save entry: %w", err)
	}
	return nil
}

// MarkSyncError records a failed push. The entry stays unsynced and
// becomes retry-eligible once the backoff gate elapses.
func (t *TimerEngine) MarkSyncError(entryID, message string) error {
	entry, err := t.entries.Get(entryID)
	if err != nil {
		return fmt.Errorf("get entry: %w", err)
	}
	if entry == nil {
		return domain.ErrEntryNotFound
	}

	now := t.clock.Now()
	if len(message) > 1000 {
		message = message[:1000]
	}
	entry.SyncError = message
	entry.LastSyncAttempt = &now
	if err := t.entries.Save(entry); err != nil {
		return fmt.Errorf("save entry: %w", err)
	}
	return nil
}

// RetryEligible is the backoff gate consulted by the sync coordinator:
// true when no attempt was made yet or the last one is older than the
// configured threshold.
func (t *TimerEngine) RetryEligible(entry *domain.TimeEntry) bool {
	return entry.RetryEligible(t.clock.Now(), t.retryAfter)
}

// PendingSync returns stopped, unsynced entries, oldest end first.
func (t *TimerEngine) PendingSync(limit int) ([]*domain.TimeEntry, error) {
	entries, err := t.entries.Unsynced(limit)
	if err != nil {
		return nil, fmt.Errorf("unsynced entries: %w", err)
	}
	return entries, nil
}

// List returns the user's entries, newest start first.
func (t *TimerEngine) List(userID string, filter domain.EntryFilter) ([]*domain.TimeEntry, error) {
	entries, err := t.entries.List(userID, filter)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

// Stats aggregates the user's stopped entries, optionally date-bounded.
func (t *TimerEngine) Stats(userID string, from, to *time.Time) (*domain.TimeStats, error) {
	stats, err := t.entries.Stats(userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("entry stats: %w", err)
	}
	return stats, nil
}

// DailyStats rolls up the user's tracked time per day over a trailing window.
func (t *TimerEngine) DailyStats(userID string, days int) ([]domain.DailyStat, error) {
	if days <= 0 {
		days = 30
	}
	since := t.clock.Now().AddDate(0, 0, -days)
	stats, err := t.entries.DailyStats(userID, since)
	if err != nil {
		return nil, fmt.Errorf("daily stats: %w", err)
	}
	return stats, nil
}

// TaskStats aggregates stopped entries for one task.
func (t *TimerEngine) TaskStats(taskID string) (*domain.TaskStats, error) {
	stats, err := t.entries.TaskStats(taskID)
	if err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	return stats, nil
}
