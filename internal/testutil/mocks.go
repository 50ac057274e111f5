// Package testutil provides shared test utilities and mock implementations.
package testutil

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/nkondo/timebridge/internal/domain"
)

// MockClock is a test double for domain.Clock.
type MockClock struct {
	NowTime time.Time
}

// Now returns the configured time.
func (m *MockClock) Now() time.Time {
	return m.NowTime
}

// Advance moves the clock forward.
func (m *MockClock) Advance(d time.Duration) {
	m.NowTime = m.NowTime.Add(d)
}

// NopLogger is a test double for domain.Logger that drops everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}

// MockSessionRepository is a test double for domain.SessionRepository.
// It enforces the one-active-session invariant the way the store does.
type MockSessionRepository struct {
	Sessions       map[string]*domain.Session // keyed by session ID
	ReplaceErr     error
	TouchErr       error
	TouchCalls     int
	ConflictOnNext bool // force ErrSessionConflict on the next ReplaceActive
}

// NewMockSessionRepository creates a MockSessionRepository.
func NewMockSessionRepository() *MockSessionRepository {
	return &MockSessionRepository{Sessions: make(map[string]*domain.Session)}
}

// ActiveByUser returns the user's valid session, or nil.
func (m *MockSessionRepository) ActiveByUser(userID string, now time.Time) (*domain.Session, error) {
	for _, s := range m.Sessions {
		if s.UserID == userID && s.IsValid(now) {
			return s, nil
		}
	}
	return nil, nil
}

// ReplaceActive deactivates the user's expired sessions and inserts the
// new one. An unexpired active session conflicts, like the store's
// partial unique index.
func (m *MockSessionRepository) ReplaceActive(s *domain.Session) error {
	if m.ReplaceErr != nil {
		return m.ReplaceErr
	}
	if m.ConflictOnNext {
		m.ConflictOnNext = false
		return domain.ErrSessionConflict
	}
	for _, existing := range m.Sessions {
		if existing.UserID == s.UserID && existing.Active {
			if existing.ExpiresAt.After(s.Created) {
				return domain.ErrSessionConflict
			}
			existing.Active = false
		}
	}
	m.Sessions[s.ID] = s
	return nil
}

// Touch updates lastUsed.
func (m *MockSessionRepository) Touch(id string, at time.Time) error {
	m.TouchCalls++
	if m.TouchErr != nil {
		return m.TouchErr
	}
	if s, ok := m.Sessions[id]; ok {
		s.LastUsed = at
	}
	return nil
}

// Extend pushes out the expiry of the user's active session.
func (m *MockSessionRepository) Extend(userID string, until, at time.Time) error {
	for _, s := range m.Sessions {
		if s.UserID == userID && s.Active {
			s.ExpiresAt = until
			s.LastUsed = at
			return nil
		}
	}
	return domain.ErrSessionNotFound
}

// DeactivateByUser deactivates all active sessions for the user.
func (m *MockSessionRepository) DeactivateByUser(userID string) (int, error) {
	n := 0
	for _, s := range m.Sessions {
		if s.UserID == userID && s.Active {
			s.Active = false
			n++
		}
	}
	return n, nil
}

// Reap deletes sessions that are inactive or expired.
func (m *MockSessionRepository) Reap(now time.Time) (int, error) {
	n := 0
	for id, s := range m.Sessions {
		if !s.Active || s.IsExpired(now) {
			delete(m.Sessions, id)
			n++
		}
	}
	return n, nil
}

// ActiveCount returns the number of active unexpired sessions for a user.
func (m *MockSessionRepository) ActiveCount(userID string, now time.Time) int {
	n := 0
	for _, s := range m.Sessions {
		if s.UserID == userID && s.IsValid(now) {
			n++
		}
	}
	return n
}

// MockTaskRepository is a test double for domain.TaskRepository.
type MockTaskRepository struct {
	Tasks   map[string]*domain.Task // keyed by local ID
	SaveErr error
	GetErr  error
}

// NewMockTaskRepository creates a MockTaskRepository.
func NewMockTaskRepository() *MockTaskRepository {
	return &MockTaskRepository{Tasks: make(map[string]*domain.Task)}
}

// Get retrieves a task by local ID.
func (m *MockTaskRepository) Get(id string) (*domain.Task, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	return m.Tasks[id], nil
}

// GetByRemoteID retrieves a task by (user, remote task id).
func (m *MockTaskRepository) GetByRemoteID(userID, remoteTaskID string) (*domain.Task, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	for _, t := range m.Tasks {
		if t.UserID == userID && t.RemoteTaskID == remoteTaskID {
			return t, nil
		}
	}
	return nil, nil
}

// Save stores a copy of the task. Like the store, an update never
// rewrites logged_minutes; only AddLoggedMinutes moves it.
func (m *MockTaskRepository) Save(task *domain.Task) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	saved := *task
	if existing, ok := m.Tasks[task.ID]; ok {
		saved.LoggedMinutes = existing.LoggedMinutes
	}
	m.Tasks[task.ID] = &saved
	return nil
}

// Find returns the user's tasks (filtering by status/priority only).
func (m *MockTaskRepository) Find(userID string, filter domain.TaskFilter, page domain.Page) ([]*domain.Task, int, error) {
	var tasks []*domain.Task
	for _, t := range m.Tasks {
		if t.UserID != userID {
			continue
		}
		if !filter.IncludeInactive && !t.Active {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.Priority != nil && t.Priority != *filter.Priority {
			continue
		}
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, len(tasks), nil
}

// Search performs a naive substring match over title and description.
func (m *MockTaskRepository) Search(userID, query string) ([]*domain.Task, error) {
	query = strings.ToLower(query)
	var tasks []*domain.Task
	for _, t := range m.Tasks {
		if t.UserID != userID || !t.Active {
			continue
		}
		if strings.Contains(strings.ToLower(t.Title), query) ||
			strings.Contains(strings.ToLower(t.Description), query) {
			tasks = append(tasks, t)
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

// Stale returns active tasks last synced before the threshold.
func (m *MockTaskRepository) Stale(userID string, olderThan time.Time) ([]*domain.Task, error) {
	var tasks []*domain.Task
	for _, t := range m.Tasks {
		if t.UserID == userID && t.Active && t.LastSynced.Before(olderThan) {
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

// ActiveRemoteIDs lists remote IDs of the user's active tasks.
func (m *MockTaskRepository) ActiveRemoteIDs(userID string) ([]string, error) {
	var ids []string
	for _, t := range m.Tasks {
		if t.UserID == userID && t.Active {
			ids = append(ids, t.RemoteTaskID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Deactivate soft-deletes a task.
func (m *MockTaskRepository) Deactivate(id string) error {
	t, ok := m.Tasks[id]
	if !ok {
		return domain.ErrTaskNotFound
	}
	t.Active = false
	return nil
}

// AddLoggedMinutes accumulates logged time on a task.
func (m *MockTaskRepository) AddLoggedMinutes(id string, minutes int) error {
	t, ok := m.Tasks[id]
	if !ok {
		return domain.ErrTaskNotFound
	}
	t.LoggedMinutes += minutes
	return nil
}

// MockTimeEntryRepository is a test double for domain.TimeEntryRepository.
// It enforces the one-running-timer invariant the way the store does.
type MockTimeEntryRepository struct {
	Entries   map[string]*domain.TimeEntry // keyed by entry ID
	InsertErr error
	SaveErr   error
}

// NewMockTimeEntryRepository creates a MockTimeEntryRepository.
func NewMockTimeEntryRepository() *MockTimeEntryRepository {
	return &MockTimeEntryRepository{Entries: make(map[string]*domain.TimeEntry)}
}

// Get retrieves an entry by ID.
func (m *MockTimeEntryRepository) Get(id string) (*domain.TimeEntry, error) {
	if e, ok := m.Entries[id]; ok {
		copied := *e
		return &copied, nil
	}
	return nil, nil
}

// Running retrieves the user's running entry.
func (m *MockTimeEntryRepository) Running(userID string) (*domain.TimeEntry, error) {
	for _, e := range m.Entries {
		if e.UserID == userID && e.IsRunning {
			copied := *e
			return &copied, nil
		}
	}
	return nil, nil
}

// InsertRunning inserts a running entry, rejecting a second one per user.
func (m *MockTimeEntryRepository) InsertRunning(e *domain.TimeEntry) error {
	if m.InsertErr != nil {
		return m.InsertErr
	}
	for _, existing := range m.Entries {
		if existing.UserID == e.UserID && existing.IsRunning {
			return domain.ErrTimerAlreadyRunning
		}
	}
	saved := *e
	m.Entries[e.ID] = &saved
	return nil
}

// Save updates an existing entry.
func (m *MockTimeEntryRepository) Save(e *domain.TimeEntry) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	if _, ok := m.Entries[e.ID]; !ok {
		return domain.ErrEntryNotFound
	}
	saved := *e
	m.Entries[e.ID] = &saved
	return nil
}

// List retrieves the user's entries, newest start first.
func (m *MockTimeEntryRepository) List(userID string, filter domain.EntryFilter) ([]*domain.TimeEntry, error) {
	var entries []*domain.TimeEntry
	for _, e := range m.Entries {
		if e.UserID != userID {
			continue
		}
		if filter.TaskID != "" && e.TaskID != filter.TaskID {
			continue
		}
		if filter.IsRunning != nil && e.IsRunning != *filter.IsRunning {
			continue
		}
		if filter.IsSynced != nil && e.IsSynced != *filter.IsSynced {
			continue
		}
		copied := *e
		entries = append(entries, &copied)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].StartTime.After(entries[j].StartTime) })
	return entries, nil
}

// Unsynced retrieves stopped, unsynced entries, oldest end first.
func (m *MockTimeEntryRepository) Unsynced(limit int) ([]*domain.TimeEntry, error) {
	var entries []*domain.TimeEntry
	for _, e := range m.Entries {
		if !e.IsRunning && !e.IsSynced && e.EndTime != nil {
			copied := *e
			entries = append(entries, &copied)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].EndTime.Before(*entries[j].EndTime) })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Stats aggregates stopped entries.
func (m *MockTimeEntryRepository) Stats(userID string, from, to *time.Time) (*domain.TimeStats, error) {
	var stats domain.TimeStats
	for _, e := range m.Entries {
		if e.UserID != userID || e.IsRunning {
			continue
		}
		if from != nil && e.StartTime.Before(*from) {
			continue
		}
		if to != nil && e.StartTime.After(*to) {
			continue
		}
		stats.TotalEntries++
		stats.TotalMinutes += e.DurationMinutes
		if e.IsSynced {
			stats.SyncedEntries++
		}
	}
	if stats.TotalEntries > 0 {
		stats.AvgMinutes = float64(stats.TotalMinutes) / float64(stats.TotalEntries)
	}
	return &stats, nil
}

// DailyStats rolls up stopped entries per day.
func (m *MockTimeEntryRepository) DailyStats(userID string, since time.Time) ([]domain.DailyStat, error) {
	byDay := make(map[string]*domain.DailyStat)
	for _, e := range m.Entries {
		if e.UserID != userID || e.IsRunning || e.StartTime.Before(since) {
			continue
		}
		day := e.StartTime.Format("2006-01-02")
		if _, ok := byDay[day]; !ok {
			byDay[day] = &domain.DailyStat{Day: day}
		}
		byDay[day].TotalMinutes += e.DurationMinutes
		byDay[day].EntryCount++
	}
	days := make([]string, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Strings(days)
	stats := make([]domain.DailyStat, 0, len(days))
	for _, d := range days {
		stats = append(stats, *byDay[d])
	}
	return stats, nil
}

// TaskStats aggregates stopped entries for one task.
func (m *MockTimeEntryRepository) TaskStats(taskID string) (*domain.TaskStats, error) {
	var stats domain.TaskStats
	for _, e := range m.Entries {
		if e.TaskID != taskID || e.IsRunning {
			continue
		}
		stats.EntryCount++
		stats.TotalMinutes += e.DurationMinutes
		if stats.FirstStart == nil || e.StartTime.Before(*stats.FirstStart) {
			t := e.StartTime
			stats.FirstStart = &t
		}
		if e.EndTime != nil && (stats.LastEnd == nil || e.EndTime.After(*stats.LastEnd)) {
			t := *e.EndTime
			stats.LastEnd = &t
		}
	}
	if stats.EntryCount > 0 {
		stats.AvgMinutes = float64(stats.TotalMinutes) / float64(stats.EntryCount)
	}
	return &stats, nil
}

// MockRemoteClient is a test double for domain.RemoteClient.
type MockRemoteClient struct {
	LoginResult   *domain.LoginResult
	LoginErr      error
	Tasks         []domain.RemoteTask
	ListErr       error
	ListErrOnce   error // returned on the next ListTasks call only
	TimerID           string
	StartTimerErr     error
	StartTimerErrOnce error // returned on the next StartTimer call only
	StopTimerErr      error
	StopTimerErrOnce  error // returned on the next StopTimer call only

	LoginCalls int
	ListCalls  int
	StartCalls int
	StopCalls  int

	StoppedTimers []string
	StoppedNotes  []string
}

// Login returns the configured result.
func (m *MockRemoteClient) Login(_ context.Context, _ domain.Credentials) (*domain.LoginResult, error) {
	m.LoginCalls++
	if m.LoginErr != nil {
		return nil, m.LoginErr
	}
	if m.LoginResult != nil {
		return m.LoginResult, nil
	}
	return &domain.LoginResult{Token: "test-token"}, nil
}

// ListTasks returns the configured task list.
func (m *MockRemoteClient) ListTasks(_ context.Context, _ string) ([]domain.RemoteTask, error) {
	m.ListCalls++
	if m.ListErrOnce != nil {
		err := m.ListErrOnce
		m.ListErrOnce = nil
		return nil, err
	}
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.Tasks, nil
}

// StartTimer returns the configured timer ID.
func (m *MockRemoteClient) StartTimer(_ context.Context, _, _ string) (string, error) {
	m.StartCalls++
	if m.StartTimerErrOnce != nil {
		err := m.StartTimerErrOnce
		m.StartTimerErrOnce = nil
		return "", err
	}
	if m.StartTimerErr != nil {
		return "", m.StartTimerErr
	}
	if m.TimerID != "" {
		return m.TimerID, nil
	}
	return "remote-timer-1", nil
}

// StopTimer records the stop.
func (m *MockRemoteClient) StopTimer(_ context.Context, _, remoteTimerID, notes string) error {
	m.StopCalls++
	if m.StopTimerErrOnce != nil {
		err := m.StopTimerErrOnce
		m.StopTimerErrOnce = nil
		return err
	}
	if m.StopTimerErr != nil {
		return m.StopTimerErr
	}
	m.StoppedTimers = append(m.StoppedTimers, remoteTimerID)
	m.StoppedNotes = append(m.StoppedNotes, notes)
	return nil
}
