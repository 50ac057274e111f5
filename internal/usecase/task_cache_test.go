package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkondo/timebridge/internal/domain"
	"github.com/nkondo/timebridge/internal/testutil"
)

func newTestTaskCache(repo *testutil.MockTaskRepository, clock *testutil.MockClock) *TaskCache {
	return NewTaskCache(repo, clock, testutil.NopLogger{}, 50)
}

func remoteTaskFixture() domain.RemoteTask {
	due := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	hours := 8.0
	return domain.RemoteTask{
		ID:             "101",
		Name:           "Fix login redirect",
		Description:    "Redirect loops on expired cookie",
		Status:         "In Progress",
		Priority:       "High",
		DueDate:        &due,
		EstimatedHours: &hours,
		Tags:           []string{"auth", "bug"},
		Assignees:      []domain.RemoteAssignee{{ID: "7", Name: "Dana"}},
		Project:        &domain.RemoteProject{ID: "3", Name: "Portal"},
	}
}

func TestTaskCache_UpsertFromRemote_CreatesTask(t *testing.T) {
	// Setup
	clock := &testutil.MockClock{NowTime: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	repo := testutil.NewMockTaskRepository()
	cache := newTestTaskCache(repo, clock)

	// Execute
	task, err := cache.UpsertFromRemote("alice", remoteTaskFixture())

	// Assert
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "alice", task.UserID)
	assert.Equal(t, "101", task.RemoteTaskID)
	assert.Equal(t, "Fix login redirect", task.Title)
	assert.Equal(t, domain.StatusInProgress, task.Status)
	assert.Equal(t, domain.PriorityHigh, task.Priority)
	assert.Equal(t, []string{"auth", "bug"}, task.Tags)
	require.NotNil(t, task.Project)
	assert.Equal(t, "Portal", task.Project.Name)
	assert.Equal(t, clock.NowTime, task.LastSynced)
	assert.True(t, task.Active)
	assert.Len(t, repo.Tasks, 1)
}

func TestTaskCache_UpsertFromRemote_Idempotent(t *testing.T) {
	// Setup
	clock := &testutil.MockClock{NowTime: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	repo := testutil.NewMockTaskRepository()
	cache := newTestTaskCache(repo, clock)
	remote := remoteTaskFixture()

	// Execute - apply the same payload twice
	first, err := cache.UpsertFromRemote("alice", remote)
	require.NoError(t, err)
	clock.Advance(time.Hour)
	second, err := cache.UpsertFromRemote("alice", remote)

	// Assert - same stored record, not a duplicate
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.Tasks, 1)
	assert.Equal(t, clock.NowTime, second.LastSynced, "last synced should advance")
}

func TestTaskCache_UpsertFromRemote_UpdatesChangedFields(t *testing.T) {
	// Setup
	clock := &testutil.MockClock{NowTime: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	repo := testutil.NewMockTaskRepository()
	cache := newTestTaskCache(repo, clock)
	remote := remoteTaskFixture()
	first, err := cache.UpsertFromRemote("alice", remote)
	require.NoError(t, err)

	// Execute - the remote task moved to Complete and lost its project
	remote.Status = "Complete"
	remote.Project = nil
	second, err := cache.UpsertFromRemote("alice", remote)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, domain.StatusComplete, second.Status)
	assert.Equal(t, 100, second.ProgressPercentage())
	assert.Nil(t, second.Project)
}

func TestTaskCache_UpsertFromRemote_MissingID(t *testing.T) {
	// Setup
	clock := &testutil.MockClock{NowTime: time.Now()}
	cache := newTestTaskCache(testutil.NewMockTaskRepository(), clock)
	remote := remoteTaskFixture()
	remote.ID = ""

	// Execute
	_, err := cache.UpsertFromRemote("alice", remote)

	// Assert
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestTaskCache_UpsertFromRemote_MissingStatus(t *testing.T) {
	// Setup
	clock := &testutil.MockClock{NowTime: time.Now()}
	cache := newTestTaskCache(testutil.NewMockTaskRepository(), clock)
	remote := remoteTaskFixture()
	remote.Status = ""

	// Execute
	_, err := cache.UpsertFromRemote("alice", remote)

	// Assert
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestTaskCache_UpsertFromRemote_UnknownStatus(t *testing.T) {
	// Setup
	clock := &testutil.MockClock{NowTime: time.Now()}
	cache := newTestTaskCache(testutil.NewMockTaskRepository(), clock)
	remote := remoteTaskFixture()
	remote.Status = "Parked"

	// Execute
	_, err := cache.UpsertFromRemote("alice", remote)

	// Assert
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestTaskCache_UpsertFromRemote_DefaultsPriority(t *testing.T) {
	// Setup - priority is optional remotely
	clock := &testutil.MockClock{NowTime: time.Now()}
	cache := newTestTaskCache(testutil.NewMockTaskRepository(), clock)
	remote := remoteTaskFixture()
	remote.Priority = ""

	// Execute
	task, err := cache.UpsertFromRemote("alice", remote)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, domain.PriorityMedium, task.Priority)
}

func TestTaskCache_UpsertFromRemote_NormalizesTags(t *testing.T) {
	// Setup
	clock := &testutil.MockClock{NowTime: time.Now()}
	cache := newTestTaskCache(testutil.NewMockTaskRepository(), clock)
	remote := remoteTaskFixture()
	remote.Tags = []string{" auth ", "", "auth", "bug", "  "}

	// Execute
	task, err := cache.UpsertFromRemote("alice", remote)

	// Assert - trimmed, empties dropped, duplicates collapsed
	require.NoError(t, err)
	assert.Equal(t, []string{"auth", "bug"}, task.Tags)
}

func TestTaskCache_Find_ExcludesInactiveByDefault(t *testing.T) {
	// Setup
	clock := &testutil.MockClock{NowTime: time.Now()}
	repo := testutil.NewMockTaskRepository()
	repo.Tasks["t1"] = &domain.Task{ID: "t1", UserID: "alice", Title: "live", Active: true}
	repo.Tasks["t2"] = &domain.Task{ID: "t2", UserID: "alice", Title: "gone", Active: false}
	cache := newTestTaskCache(repo, clock)

	// Execute
	tasks, total, err := cache.Find("alice", domain.TaskFilter{}, domain.Page{})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, tasks, 1)
	assert.Equal(t, "t1", tasks[0].ID)
}

func TestTaskCache_StaleTasks_ThresholdFiltering(t *testing.T) {
	// Setup
	clock := &testutil.MockClock{NowTime: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	repo := testutil.NewMockTaskRepository()
	repo.Tasks["fresh"] = &domain.Task{
		ID: "fresh", UserID: "alice", Active: true,
		LastSynced: clock.NowTime.Add(-10 * time.Minute),
	}
	repo.Tasks["stale"] = &domain.Task{
		ID: "stale", UserID: "alice", Active: true,
		LastSynced: clock.NowTime.Add(-45 * time.Minute),
	}
	cache := newTestTaskCache(repo, clock)

	// Execute
	stale, err := cache.StaleTasks("alice", 30*time.Minute)

	// Assert
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "stale", stale[0].ID)
}

func TestTaskCache_AddLoggedMinutes_Accumulates(t *testing.T) {
	// Setup
	clock := &testutil.MockClock{NowTime: time.Now()}
	repo := testutil.NewMockTaskRepository()
	repo.Tasks["t1"] = &domain.Task{ID: "t1", UserID: "alice", LoggedMinutes: 30, Active: true}
	cache := newTestTaskCache(repo, clock)

	// Execute
	err := cache.AddLoggedMinutes("t1", 25)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 55, repo.Tasks["t1"].LoggedMinutes)
}
