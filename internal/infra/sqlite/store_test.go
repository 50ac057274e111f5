package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkondo/timebridge/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testSession(id, userID string, now time.Time) *domain.Session {
	return &domain.Session{
		ID:        id,
		UserID:    userID,
		Token:     "tok-" + id,
		Created:   now,
		ExpiresAt: now.Add(24 * time.Hour),
		LastUsed:  now,
		Active:    true,
	}
}

func testStoredTask(id, userID, remoteID string, now time.Time) *domain.Task {
	return &domain.Task{
		ID:           id,
		UserID:       userID,
		RemoteTaskID: remoteID,
		Title:        "Task " + remoteID,
		Status:       domain.StatusInProgress,
		Priority:     domain.PriorityMedium,
		LastSynced:   now,
		Created:      now,
		Updated:      now,
		Active:       true,
	}
}

func TestSessionRepo_ReplaceActive_ConflictsWithLiveSession(t *testing.T) {
	// Setup
	store := openTestStore(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.Sessions().ReplaceActive(testSession("winner", "alice", now)))

	// Execute - a concurrent loser must not displace the live winner
	err := store.Sessions().ReplaceActive(testSession("loser", "alice", now))

	// Assert
	assert.ErrorIs(t, err, domain.ErrSessionConflict)
	active, lookupErr := store.Sessions().ActiveByUser("alice", now)
	require.NoError(t, lookupErr)
	require.NotNil(t, active)
	assert.Equal(t, "winner", active.ID)
}

func TestSessionRepo_ReplaceActive_ReplacesExpiredSession(t *testing.T) {
	// Setup
	store := openTestStore(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	dead := testSession("s1", "alice", now.Add(-48*time.Hour))
	require.NoError(t, store.Sessions().ReplaceActive(dead))

	// Execute - an expired session does not block the fresh login
	require.NoError(t, store.Sessions().ReplaceActive(testSession("s2", "alice", now)))

	// Assert
	active, err := store.Sessions().ActiveByUser("alice", now)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "s2", active.ID)
}

func TestSessionRepo_ActiveByUser_IgnoresExpired(t *testing.T) {
	// Setup
	store := openTestStore(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	session := testSession("s1", "alice", now)
	session.ExpiresAt = now.Add(-time.Minute)
	require.NoError(t, store.Sessions().ReplaceActive(session))

	// Execute
	active, err := store.Sessions().ActiveByUser("alice", now)

	// Assert
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestSessionRepo_Reap_DeletesDeadRows(t *testing.T) {
	// Setup
	store := openTestStore(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	expired := testSession("s1", "alice", now)
	expired.ExpiresAt = now.Add(-time.Hour)
	require.NoError(t, store.Sessions().ReplaceActive(expired))
	require.NoError(t, store.Sessions().ReplaceActive(testSession("s2", "bob", now)))

	// Execute
	n, err := store.Sessions().Reap(now)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	live, err := store.Sessions().ActiveByUser("bob", now)
	require.NoError(t, err)
	assert.NotNil(t, live)
}

func TestTaskRepo_Save_UpsertsByUserAndRemoteID(t *testing.T) {
	// Setup
	store := openTestStore(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	task := testStoredTask("t1", "alice", "101", now)
	require.NoError(t, store.Tasks().Save(task))

	// Execute - a second save with the same (user, remote id) updates in place
	task.Title = "Renamed"
	task.Status = domain.StatusComplete
	require.NoError(t, store.Tasks().Save(task))

	// Assert
	saved, err := store.Tasks().GetByRemoteID("alice", "101")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "Renamed", saved.Title)
	assert.Equal(t, domain.StatusComplete, saved.Status)

	_, total, err := store.Tasks().Find("alice", domain.TaskFilter{IncludeInactive: true}, domain.Page{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestTaskRepo_Save_KeepsLoggedMinutesFromStaleSnapshot(t *testing.T) {
	// Setup
	store := openTestStore(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	task := testStoredTask("t1", "alice", "101", now)
	require.NoError(t, store.Tasks().Save(task))

	stale, err := store.Tasks().GetByRemoteID("alice", "101")
	require.NoError(t, err)
	require.NoError(t, store.Tasks().AddLoggedMinutes("t1", 30))

	// Execute - a refresh upsert from a snapshot read before the stop
	stale.Title = "Refreshed"
	require.NoError(t, store.Tasks().Save(stale))

	// Assert - the locally accumulated counter survives the upsert
	saved, err := store.Tasks().Get("t1")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "Refreshed", saved.Title)
	assert.Equal(t, 30, saved.LoggedMinutes)
}

func TestTaskRepo_Save_RoundTripsOptionalFields(t *testing.T) {
	// Setup
	store := openTestStore(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	due := now.AddDate(0, 1, 0)
	hours := 8.5
	task := testStoredTask("t1", "alice", "101", now)
	task.DueDate = &due
	task.EstimatedHours = &hours
	task.Tags = []string{"auth", "bug"}
	task.Assignees = []domain.Assignee{{ID: "7", Name: "Dana"}}
	task.Project = &domain.ProjectRef{ID: "3", Name: "Portal"}

	// Execute
	require.NoError(t, store.Tasks().Save(task))
	saved, err := store.Tasks().Get("t1")

	// Assert
	require.NoError(t, err)
	require.NotNil(t, saved)
	require.NotNil(t, saved.DueDate)
	assert.True(t, saved.DueDate.Equal(due))
	require.NotNil(t, saved.EstimatedHours)
	assert.Equal(t, 8.5, *saved.EstimatedHours)
	assert.Equal(t, []string{"auth", "bug"}, saved.Tags)
	require.Len(t, saved.Assignees, 1)
	assert.Equal(t, "Dana", saved.Assignees[0].Name)
	require.NotNil(t, saved.Project)
	assert.Equal(t, "Portal", saved.Project.Name)
}

func TestTaskRepo_Find_OrdersByDueDateThenPriority(t *testing.T) {
	// Setup
	store := openTestStore(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	soon := now.AddDate(0, 0, 1)
	later := now.AddDate(0, 0, 7)

	noDue := testStoredTask("t1", "alice", "101", now)
	noDue.Priority = domain.PriorityUrgent
	dueSoon := testStoredTask("t2", "alice", "102", now)
	dueSoon.DueDate = &soon
	dueLater := testStoredTask("t3", "alice", "103", now)
	dueLater.DueDate = &later
	for _, task := range []*domain.Task{noDue, dueSoon, dueLater} {
		require.NoError(t, store.Tasks().Save(task))
	}

	// Execute
	tasks, total, err := store.Tasks().Find("alice", domain.TaskFilter{}, domain.Page{})

	// Assert - due dates first (ascending), undated last
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, tasks, 3)
	assert.Equal(t, "t2", tasks[0].ID)
	assert.Equal(t, "t3", tasks[1].ID)
	assert.Equal(t, "t1", tasks[2].ID)
}

func TestTaskRepo_Find_Pagination(t *testing.T) {
	// Setup
	store := openTestStore(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, remoteID := range []string{"101", "102", "103"} {
		task := testStoredTask(remoteID, "alice", remoteID, now.Add(time.Duration(i)*time.Minute))
		require.NoError(t, store.Tasks().Save(task))
	}

	// Execute
	tasks, total, err := store.Tasks().Find("alice", domain.TaskFilter{}, domain.Page{Number: 2, Size: 2})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, tasks, 1)
}

func TestTaskRepo_Search_RanksMatches(t *testing.T) {
	// Setup
	store := openTestStore(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	hit := testStoredTask("t1", "alice", "101", now)
	hit.Title = "Fix authentication redirect"
	miss := testStoredTask("t2", "alice", "102", now)
	miss.Title = "Update billing report"
	tagged := testStoredTask("t3", "alice", "103", now)
	tagged.Title = "Cleanup"
	tagged.Tags = []string{"authentication"}
	for _, task := range []*domain.Task{hit, miss, tagged} {
		require.NoError(t, store.Tasks().Save(task))
	}

	// Execute - prefix match over title and tags
	tasks, err := store.Tasks().Search("alice", "authent")

	// Assert
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	ids := []string{tasks[0].ID, tasks[1].ID}
	assert.Contains(t, ids, "t1")
	assert.Contains(t, ids, "t3")
}

func TestTaskRepo_Search_ReflectsUpdates(t *testing.T) {
	// Setup - the FTS index must follow row updates
	store := openTestStore(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	task := testStoredTask("t1", "alice", "101", now)
	task.Title = "Old title"
	require.NoError(t, store.Tasks().Save(task))

	// Execute
	task.Title = "Brand new wording"
	require.NoError(t, store.Tasks().Save(task))

	old, err := store.Tasks().Search("alice", "old")
	require.NoError(t, err)
	fresh, err := store.Tasks().Search("alice", "wording")
	require.NoError(t, err)

	// Assert
	assert.Empty(t, old)
	require.Len(t, fresh, 1)
	assert.Equal(t, "t1", fresh[0].ID)
}

func TestTaskRepo_Search_EmptyQuery(t *testing.T) {
	// Setup
	store := openTestStore(t)

	// Execute - punctuation-only input has no searchable terms
	tasks, err := store.Tasks().Search("alice", "  !?  ")

	// Assert
	require.NoError(t, err)
	assert.Nil(t, tasks)
}

func TestEntryRepo_InsertRunning_RejectsSecondRunning(t *testing.T) {
	// Setup
	store := openTestStore(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.Tasks().Save(testStoredTask("t1", "alice", "101", now)))

	first := &domain.TimeEntry{
		ID: "e1", UserID: "alice", TaskID: "t1", RemoteTaskID: "101",
		StartTime: now, Created: now, IsRunning: true,
	}
	require.NoError(t, store.Entries().InsertRunning(first))

	// Execute
	second := &domain.TimeEntry{
		ID: "e2", UserID: "alice", TaskID: "t1", RemoteTaskID: "101",
		StartTime: now, Created: now, IsRunning: true,
	}
	err := store.Entries().InsertRunning(second)

	// Assert - the partial unique index is the arbiter
	assert.ErrorIs(t, err, domain.ErrTimerAlreadyRunning)

	running, err := store.Entries().Running("alice")
	require.NoError(t, err)
	require.NotNil(t, running)
	assert.Equal(t, "e1", running.ID)
}

func TestEntryRepo_Save_StopThenNewTimer(t *testing.T) {
	// Setup - stopping the running entry frees the slot for the next one
	store := openTestStore(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.Tasks().Save(testStoredTask("t1", "alice", "101", now)))

	entry := &domain.TimeEntry{
		ID: "e1", UserID: "alice", TaskID: "t1", RemoteTaskID: "101",
		StartTime: now, Created: now, IsRunning: true,
	}
	require.NoError(t, store.Entries().InsertRunning(entry))

	end := now.Add(30 * time.Minute)
	entry.EndTime = &end
	entry.DurationMinutes = 30
	entry.IsRunning = false
	require.NoError(t, store.Entries().Save(entry))

	// Execute
	next := &domain.TimeEntry{
		ID: "e2", UserID: "alice", TaskID: "t1", RemoteTaskID: "101",
		StartTime: end, Created: end, IsRunning: true,
	}
	err := store.Entries().InsertRunning(next)

	// Assert
	require.NoError(t, err)
}

func TestEntryRepo_Save_MissingEntry(t *testing.T) {
	// Setup
	store := openTestStore(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	entry := &domain.TimeEntry{ID: "ghost", UserID: "alice", TaskID: "t1", StartTime: now}

	// Execute
	err := store.Entries().Save(entry)

	// Assert
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)
}

func TestEntryRepo_Unsynced_OldestEndFirst(t *testing.T) {
	// Setup
	store := openTestStore(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.Tasks().Save(testStoredTask("t1", "alice", "101", now)))

	for i, id := range []string{"newer", "older"} {
		start := now.Add(time.Duration(-i) * time.Hour)
		end := start.Add(30 * time.Minute)
		entry := &domain.TimeEntry{
			ID: id, UserID: "alice", TaskID: "t1", RemoteTaskID: "101",
			StartTime: start, Created: start, IsRunning: true,
		}
		require.NoError(t, store.Entries().InsertRunning(entry))
		entry.EndTime = &end
		entry.DurationMinutes = 30
		entry.IsRunning = false
		require.NoError(t, store.Entries().Save(entry))
	}

	// Execute
	entries, err := store.Entries().Unsynced(10)

	// Assert
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "older", entries[0].ID)
	assert.Equal(t, "newer", entries[1].ID)
}

func TestEntryRepo_Stats_AggregatesStoppedOnly(t *testing.T) {
	// Setup
	store := openTestStore(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.Tasks().Save(testStoredTask("t1", "alice", "101", now)))

	stopped := &domain.TimeEntry{
		ID: "e1", UserID: "alice", TaskID: "t1", RemoteTaskID: "101",
		StartTime: now, Created: now, IsRunning: true,
	}
	require.NoError(t, store.Entries().InsertRunning(stopped))
	end := now.Add(40 * time.Minute)
	stopped.EndTime = &end
	stopped.DurationMinutes = 40
	stopped.IsRunning = false
	stopped.IsSynced = true
	require.NoError(t, store.Entries().Save(stopped))

	running := &domain.TimeEntry{
		ID: "e2", UserID: "alice", TaskID: "t1", RemoteTaskID: "101",
		StartTime: end, Created: end, IsRunning: true,
	}
	require.NoError(t, store.Entries().InsertRunning(running))

	// Execute
	stats, err := store.Entries().Stats("alice", nil, nil)

	// Assert - the running entry is excluded
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalEntries)
	assert.Equal(t, 40, stats.TotalMinutes)
	assert.Equal(t, 1, stats.SyncedEntries)
}
