package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/nkondo/timebridge/internal/domain"
)

// Sweeper runs the background schedules: stale-task refresh, failed-sync
// drain and session reaping. Each sweep runs on its own ticker,
// independent of request traffic, until the context is cancelled.
type Sweeper struct {
	coordinator *SyncCoordinator
	sessions    *SessionStore
	cache       *TaskCache
	logger      domain.Logger
	userID      string
	refreshIvl  time.Duration
	drainIvl    time.Duration
	reapIvl     time.Duration
	staleAfter  time.Duration
}

// SweeperOptions configures the background schedules.
type SweeperOptions struct {
	UserID          string
	RefreshInterval time.Duration
	DrainInterval   time.Duration
	ReapInterval    time.Duration
	StaleAfter      time.Duration
}

// NewSweeper creates a new Sweeper.
func NewSweeper(coordinator *SyncCoordinator, sessions *SessionStore, cache *TaskCache, logger domain.Logger, opts SweeperOptions) *Sweeper {
	return &Sweeper{
		coordinator: coordinator,
		sessions:    sessions,
		cache:       cache,
		logger:      logger,
		userID:      opts.UserID,
		refreshIvl:  opts.RefreshInterval,
		drainIvl:    opts.DrainInterval,
		reapIvl:     opts.ReapInterval,
		staleAfter:  opts.StaleAfter,
	}
}

// Run blocks until the context is cancelled, dispatching each sweep on its
// own schedule.
func (s *Sweeper) Run(ctx context.Context) {
	refresh := time.NewTicker(s.refreshIvl)
	drain := time.NewTicker(s.drainIvl)
	reap := time.NewTicker(s.reapIvl)
	defer refresh.Stop()
	defer drain.Stop()
	defer reap.Stop()

	s.logger.Info("sweeper started",
		"refresh", s.refreshIvl, "drain", s.drainIvl, "reap", s.reapIvl)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-refresh.C:
			s.refreshStale(ctx)
		case <-drain.C:
			s.drainFailed(ctx)
		case <-reap.C:
			s.reapSessions()
		}
	}
}

// refreshStale refreshes the cache only when tasks have actually gone
// stale; an up-to-date cache skips the remote round trip.
func (s *Sweeper) refreshStale(ctx context.Context) {
	stale, err := s.cache.StaleTasks(s.userID, s.staleAfter)
	if err != nil {
		s.logger.Error("stale scan failed", "error", err)
		return
	}
	if len(stale) == 0 {
		return
	}
	n, err := s.coordinator.RefreshTasks(ctx, s.userID)
	if err != nil {
		s.logger.Warn("refresh sweep failed", "error", err)
		return
	}
	s.logger.Info("refresh sweep done", "stale", len(stale), "synced", n)
}

func (s *Sweeper) drainFailed(ctx context.Context) {
	n, err := s.coordinator.DrainFailedSyncs(ctx, 0)
	if err != nil {
		// An auth failure pauses draining until the next scheduled
		// sweep; the first successful re-login resumes it.
		if errors.Is(err, domain.ErrAuthenticationFailed) {
			s.logger.Warn("drain sweep halted on auth failure", "synced", n)
			return
		}
		s.logger.Warn("drain sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("drain sweep done", "synced", n)
	}
}

func (s *Sweeper) reapSessions() {
	n, err := s.sessions.Reap()
	if err != nil {
		s.logger.Error("session reap failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("sessions reaped", "count", n)
	}
}
