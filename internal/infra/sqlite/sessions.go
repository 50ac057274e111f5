package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nkondo/timebridge/internal/domain"
)

const sessionColumns = "id, user_id, token, remote_url, created_at, expires_at, last_used, is_active"

// SessionRepo implements domain.SessionRepository on the shared handle.
type SessionRepo struct {
	db *sql.DB
}

// ActiveByUser retrieves the user's active unexpired session.
func (r *SessionRepo) ActiveByUser(userID string, now time.Time) (*domain.Session, error) {
	row := r.db.QueryRow(`
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE user_id = ? AND is_active = 1 AND expires_at > ?
		ORDER BY last_used DESC
		LIMIT 1
	`, userID, now)

	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	return session, nil
}

// ReplaceActive deactivates the user's expired sessions and inserts the
// new one. An unexpired active session is left in place, so the partial
// unique index rejects the insert: the loser of a concurrent acquire
// gets ErrSessionConflict and must adopt the winner, never overwrite it.
func (r *SessionRepo) ReplaceActive(session *domain.Session) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		UPDATE sessions SET is_active = 0
		WHERE user_id = ? AND is_active = 1 AND expires_at <= ?
	`, session.UserID, session.Created); err != nil {
		return fmt.Errorf("deactivate expired sessions: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1)
	`, session.ID, session.UserID, session.Token, session.RemoteURL,
		session.Created, session.ExpiresAt, session.LastUsed)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSessionConflict
		}
		return fmt.Errorf("insert session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSessionConflict
		}
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Touch updates lastUsed.
func (r *SessionRepo) Touch(id string, at time.Time) error {
	_, err := r.db.Exec(`UPDATE sessions SET last_used = ? WHERE id = ?`, at, id)
	return err
}

// Extend pushes out the expiry of the user's active session.
func (r *SessionRepo) Extend(userID string, until, at time.Time) error {
	res, err := r.db.Exec(`
		UPDATE sessions SET expires_at = ?, last_used = ?
		WHERE user_id = ? AND is_active = 1
	`, until, at, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// DeactivateByUser deactivates all active sessions for the user.
func (r *SessionRepo) DeactivateByUser(userID string) (int, error) {
	res, err := r.db.Exec(`UPDATE sessions SET is_active = 0 WHERE user_id = ? AND is_active = 1`, userID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Reap deletes inactive or expired sessions.
func (r *SessionRepo) Reap(now time.Time) (int, error) {
	res, err := r.db.Exec(`DELETE FROM sessions WHERE is_active = 0 OR expires_at <= ?`, now)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var sess domain.Session
	err := row.Scan(&sess.ID, &sess.UserID, &sess.Token, &sess.RemoteURL,
		&sess.Created, &sess.ExpiresAt, &sess.LastUsed, &sess.Active)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}
