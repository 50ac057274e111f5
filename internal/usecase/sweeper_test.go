package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkondo/timebridge/internal/domain"
	"github.com/nkondo/timebridge/internal/testutil"
)

func newTestSweeper(f *coordinatorFixture) *Sweeper {
	logger := testutil.NopLogger{}
	store := NewSessionStore(f.sessions, f.clock, logger, 24*time.Hour)
	cache := NewTaskCache(f.tasks, f.clock, logger, 50)
	return NewSweeper(f.coord, store, cache, logger, SweeperOptions{
		UserID:          "alice",
		RefreshInterval: time.Minute,
		DrainInterval:   time.Minute,
		ReapInterval:    time.Minute,
		StaleAfter:      30 * time.Minute,
	})
}

func TestSweeper_RefreshStale_SkipsWhenCacheFresh(t *testing.T) {
	// Setup - all cached tasks synced recently
	f := newCoordinatorFixture(SyncOptions{})
	f.tasks.Tasks["t1"] = &domain.Task{
		ID: "t1", UserID: "alice", RemoteTaskID: "101",
		Status: domain.StatusInProgress, Active: true,
		LastSynced: f.clock.NowTime.Add(-5 * time.Minute),
	}
	sweeper := newTestSweeper(f)

	// Execute
	sweeper.refreshStale(context.Background())

	// Assert - no remote round trip
	assert.Equal(t, 0, f.remote.ListCalls)
	assert.Equal(t, 0, f.remote.LoginCalls)
}

func TestSweeper_RefreshStale_RefreshesWhenStale(t *testing.T) {
	// Setup
	f := newCoordinatorFixture(SyncOptions{})
	f.tasks.Tasks["t1"] = &domain.Task{
		ID: "t1", UserID: "alice", RemoteTaskID: "101",
		Status: domain.StatusInProgress, Active: true,
		LastSynced: f.clock.NowTime.Add(-time.Hour),
	}
	f.remote.Tasks = []domain.RemoteTask{{ID: "101", Name: "Refreshed", Status: "Testing"}}
	sweeper := newTestSweeper(f)

	// Execute
	sweeper.refreshStale(context.Background())

	// Assert
	assert.Equal(t, 1, f.remote.ListCalls)
	assert.Equal(t, domain.StatusTesting, f.tasks.Tasks["t1"].Status)
}

func TestSweeper_DrainFailed_SyncsPendingEntries(t *testing.T) {
	// Setup
	f := newCoordinatorFixture(SyncOptions{})
	entry := f.startEntry(t)
	f.stopEntry(t, entry)
	sweeper := newTestSweeper(f)

	// Execute
	sweeper.drainFailed(context.Background())

	// Assert
	saved, err := f.entries.Get(entry.ID)
	require.NoError(t, err)
	assert.True(t, saved.IsSynced)
}

func TestSweeper_ReapSessions_DeletesExpired(t *testing.T) {
	// Setup
	f := newCoordinatorFixture(SyncOptions{})
	f.sessions.Sessions["dead"] = &domain.Session{
		ID: "dead", UserID: "alice",
		ExpiresAt: f.clock.NowTime.Add(-time.Minute), Active: true,
	}
	sweeper := newTestSweeper(f)

	// Execute
	sweeper.reapSessions()

	// Assert
	assert.Empty(t, f.sessions.Sessions)
}

func TestSweeper_Run_StopsOnContextCancel(t *testing.T) {
	// Setup
	f := newCoordinatorFixture(SyncOptions{})
	sweeper := newTestSweeper(f)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	// Execute
	cancel()

	// Assert
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on context cancel")
	}
}
