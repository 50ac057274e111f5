// Package usecase contains the application core: session management,
// the task cache, the timer engine and the sync coordinator.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nkondo/timebridge/internal/domain"
)

// LoginFunc performs a remote login on behalf of Acquire.
type LoginFunc func(ctx context.Context) (*domain.LoginResult, error)

// SessionStore serves one authoritative remote session per user,
// re-logging in when the current session is missing or expired.
type SessionStore struct {
	sessions domain.SessionRepository
	clock    domain.Clock
	logger   domain.Logger
	ttl      time.Duration // fallback lifetime when the remote reports no expiry
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(sessions domain.SessionRepository, clock domain.Clock, logger domain.Logger, ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: sessions,
		clock:    clock,
		logger:   logger,
		ttl:      ttl,
	}
}

// Acquire returns the user's valid session, performing a remote login when
// none exists. Two concurrent callers cannot both insert a session: the
// store rejects the loser, which then returns the winner's session.
func (s *SessionStore) Acquire(ctx context.Context, userID string, login LoginFunc) (*domain.Session, error) {
	now := s.clock.Now()

	current, err := s.sessions.ActiveByUser(userID, now)
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if current != nil {
		s.Touch(current)
		return current, nil
	}

	result, err := login(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrAuthenticationFailed, err)
	}

	expiresAt := result.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = now.Add(s.ttl)
	}

	session := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Token:     result.Token,
		Created:   now,
		ExpiresAt: expiresAt,
		LastUsed:  now,
		Active:    true,
	}

	if err := s.sessions.ReplaceActive(session); err != nil {
		if errors.Is(err, domain.ErrSessionConflict) {
			// A concurrent caller won the insert; hand out its session.
			winner, lookupErr := s.sessions.ActiveByUser(userID, s.clock.Now())
			if lookupErr != nil {
				return nil, fmt.Errorf("lookup winning session: %w", lookupErr)
			}
			if winner != nil {
				return winner, nil
			}
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("persist session: %w", err)
	}

	s.logger.Info("session acquired", "user", userID, "expires", expiresAt)
	return session, nil
}

// Touch updates the session's lastUsed timestamp. Best-effort: a failure
// is logged and never fails the caller's operation.
func (s *SessionStore) Touch(session *domain.Session) {
	now := s.clock.Now()
	if err := s.sessions.Touch(session.ID, now); err != nil {
		s.logger.Warn("touch session failed", "session", session.ID, "error", err)
		return
	}
	session.LastUsed = now
}

// Extend pushes the user's active session expiry out by the given hours.
func (s *SessionStore) Extend(userID string, hours int) error {
	now := s.clock.Now()
	until := now.Add(time.Duration(hours) * time.Hour)
	if err := s.sessions.Extend(userID, until, now); err != nil {
		return fmt.Errorf("extend session: %w", err)
	}
	return nil
}

// Invalidate deactivates all active sessions for the user. Idempotent.
func (s *SessionStore) Invalidate(userID string) error {
	n, err := s.sessions.DeactivateByUser(userID)
	if err != nil {
		return fmt.Errorf("invalidate sessions: %w", err)
	}
	if n > 0 {
		s.logger.Info("sessions invalidated", "user", userID, "count", n)
	}
	return nil
}

// Reap deletes inactive or expired sessions. Returns the count removed.
func (s *SessionStore) Reap() (int, error) {
	n, err := s.sessions.Reap(s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("reap sessions: %w", err)
	}
	return n, nil
}
