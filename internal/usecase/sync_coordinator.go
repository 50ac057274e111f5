package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nkondo/timebridge/internal/domain"
)

// SyncCoordinator is the only component that talks to the remote system.
// It obtains sessions from the SessionStore, translates remote payloads
// into TaskCache and TimerEngine operations, and drains failed pushes.
type SyncCoordinator struct {
	sessions     *SessionStore
	cache        *TaskCache
	timers       *TimerEngine
	remote       domain.RemoteClient
	clock        domain.Clock
	logger       domain.Logger
	creds        domain.Credentials
	timeout      time.Duration
	drainBatch   int
	evictMissing bool
}

// SyncOptions configures coordinator policy.
type SyncOptions struct {
	Credentials  domain.Credentials
	Timeout      time.Duration // per remote call
	DrainBatch   int
	EvictMissing bool // deactivate local tasks missing from a remote refresh
}

// NewSyncCoordinator creates a new SyncCoordinator.
func NewSyncCoordinator(
	sessions *SessionStore,
	cache *TaskCache,
	timers *TimerEngine,
	remote domain.RemoteClient,
	clock domain.Clock,
	logger domain.Logger,
	opts SyncOptions,
) *SyncCoordinator {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.DrainBatch <= 0 {
		opts.DrainBatch = 50
	}
	return &SyncCoordinator{
		sessions:     sessions,
		cache:        cache,
		timers:       timers,
		remote:       remote,
		clock:        clock,
		logger:       logger,
		creds:        opts.Credentials,
		timeout:      opts.Timeout,
		drainBatch:   opts.DrainBatch,
		evictMissing: opts.EvictMissing,
	}
}

// login is the LoginFunc handed to SessionStore.Acquire.
func (sc *SyncCoordinator) login(ctx context.Context) (*domain.LoginResult, error) {
	if sc.creds.Email == "" || sc.creds.Password == "" {
		return nil, domain.ErrMissingCredentials
	}
	callCtx, cancel := context.WithTimeout(ctx, sc.timeout)
	defer cancel()
	return sc.remote.Login(callCtx, sc.creds)
}

func (sc *SyncCoordinator) acquire(ctx context.Context, userID string) (*domain.Session, error) {
	return sc.sessions.Acquire(ctx, userID, sc.login)
}

// withSession acquires the user's session and runs fn with its token.
// When the remote rejects the session mid-call the stale session is
// invalidated and fn retried once on a fresh login; the caller never
// sees ErrSessionExpired.
func (sc *SyncCoordinator) withSession(ctx context.Context, userID string, fn func(token string) error) error {
	session, err := sc.acquire(ctx, userID)
	if err != nil {
		return err
	}

	err = fn(session.Token)
	if errors.Is(err, domain.ErrSessionExpired) {
		if invErr := sc.sessions.Invalidate(userID); invErr != nil {
			return invErr
		}
		session, err = sc.acquire(ctx, userID)
		if err != nil {
			return err
		}
		err = fn(session.Token)
	}
	return err
}

// RefreshTasks fetches the user's remote task list and applies it to the
// cache. Per-item cache failures are logged and skipped. Returns the
// number of tasks synced.
func (sc *SyncCoordinator) RefreshTasks(ctx context.Context, userID string) (int, error) {
	var remoteTasks []domain.RemoteTask
	err := sc.withSession(ctx, userID, func(token string) error {
		var listErr error
		remoteTasks, listErr = sc.listTasks(ctx, token)
		return listErr
	})
	if err != nil {
		return 0, fmt.Errorf("list remote tasks: %w", err)
	}

	synced := 0
	seen := make(map[string]struct{}, len(remoteTasks))
	for _, rt := range remoteTasks {
		task, upErr := sc.cache.UpsertFromRemote(userID, rt)
		if upErr != nil {
			sc.logger.Warn("skip remote task", "remote", rt.ID, "error", upErr)
			continue
		}
		seen[task.RemoteTaskID] = struct{}{}
		synced++
	}

	if sc.evictMissing {
		if err := sc.evictUnseen(userID, seen); err != nil {
			sc.logger.Warn("evict missing tasks failed", "user", userID, "error", err)
		}
	}

	sc.logger.Info("tasks refreshed", "user", userID, "synced", synced)
	return synced, nil
}

func (sc *SyncCoordinator) listTasks(ctx context.Context, token string) ([]domain.RemoteTask, error) {
	callCtx, cancel := context.WithTimeout(ctx, sc.timeout)
	defer cancel()
	return sc.remote.ListTasks(callCtx, token)
}

// evictUnseen soft-deactivates active local tasks the remote no longer
// reports. Policy-gated by sync.evict_missing.
func (sc *SyncCoordinator) evictUnseen(userID string, seen map[string]struct{}) error {
	ids, err := sc.cache.tasks.ActiveRemoteIDs(userID)
	if err != nil {
		return err
	}
	for _, remoteID := range ids {
		if _, ok := seen[remoteID]; ok {
			continue
		}
		task, err := sc.cache.tasks.GetByRemoteID(userID, remoteID)
		if err != nil || task == nil {
			continue
		}
		if err := sc.cache.Deactivate(task.ID); err != nil {
			return err
		}
		sc.logger.Info("task deactivated (missing remotely)", "remote", remoteID)
	}
	return nil
}

// PushTimerStart pushes a timer start to the remote system. On success the
// remote timer ID is attached to the entry; on failure the error is
// recorded and the local timer stays running (local-first policy).
func (sc *SyncCoordinator) PushTimerStart(ctx context.Context, entry *domain.TimeEntry) error {
	var remoteTimerID string
	err := sc.withSession(ctx, entry.UserID, func(token string) error {
		callCtx, cancel := context.WithTimeout(ctx, sc.timeout)
		defer cancel()
		id, callErr := sc.remote.StartTimer(callCtx, token, entry.RemoteTaskID)
		if callErr != nil {
			return callErr
		}
		remoteTimerID = id
		return nil
	})
	if err != nil {
		sc.recordError(entry, err)
		return fmt.Errorf("start remote timer: %w", err)
	}

	if err := sc.timers.AttachRemoteTimer(entry.ID, remoteTimerID); err != nil {
		return err
	}
	entry.RemoteTimerID = remoteTimerID
	entry.SyncError = ""
	return nil
}

// PushTimerStop pushes a stopped entry to the remote system. An entry
// whose start push never succeeded has no remote timer yet; one is opened
// first so the stop can be delivered (at-least-once; duplicate detection
// is the remote's concern). A timer opened before a mid-call session
// rejection is reused on the retry.
func (sc *SyncCoordinator) PushTimerStop(ctx context.Context, entry *domain.TimeEntry) error {
	remoteTimerID := entry.RemoteTimerID
	err := sc.withSession(ctx, entry.UserID, func(token string) error {
		if remoteTimerID == "" {
			callCtx, cancel := context.WithTimeout(ctx, sc.timeout)
			id, openErr := sc.remote.StartTimer(callCtx, token, entry.RemoteTaskID)
			cancel()
			if openErr != nil {
				return fmt.Errorf("open remote timer: %w", openErr)
			}
			remoteTimerID = id
		}

		callCtx, cancel := context.WithTimeout(ctx, sc.timeout)
		defer cancel()
		if stopErr := sc.remote.StopTimer(callCtx, token, remoteTimerID, entry.Notes); stopErr != nil {
			return fmt.Errorf("stop remote timer: %w", stopErr)
		}
		return nil
	})
	if err != nil {
		sc.recordError(entry, err)
		return err
	}

	if err := sc.timers.MarkSynced(entry.ID, remoteTimerID); err != nil {
		return err
	}
	sc.logger.Info("entry synced", "entry", entry.ID)
	return nil
}

// DrainFailedSyncs retries stopped, unsynced entries that have passed the
// backoff gate. Per-entry failures never abort the batch, except an
// authentication failure, which short-circuits the sweep. Returns the
// number of entries synced.
func (sc *SyncCoordinator) DrainFailedSyncs(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = sc.drainBatch
	}
	pending, err := sc.timers.PendingSync(batchSize)
	if err != nil {
		return 0, err
	}

	synced := 0
	for _, entry := range pending {
		if !sc.timers.RetryEligible(entry) {
			continue
		}
		if err := sc.PushTimerStop(ctx, entry); err != nil {
			if errors.Is(err, domain.ErrAuthenticationFailed) {
				// Session-level failure; not worth burning the batch.
				return synced, err
			}
			sc.logger.Warn("retry failed", "entry", entry.ID, "error", err)
			continue
		}
		synced++
	}
	return synced, nil
}

// recordError stamps the entry with the failure. Sweeps read it back
// through the backoff gate; nothing propagates to local timer state.
func (sc *SyncCoordinator) recordError(entry *domain.TimeEntry, err error) {
	if mErr := sc.timers.MarkSyncError(entry.ID, err.Error()); mErr != nil {
		sc.logger.Error("record sync error failed", "entry", entry.ID, "error", mErr)
		return
	}
	now := sc.clock.Now()
	entry.SyncError = err.Error()
	entry.LastSyncAttempt = &now
}
