// Package sqlite provides the SQLite-backed implementations of the
// repository ports. The schema-level constraints here are the sole
// arbiters of the "one active session per user" and "one running timer
// per user" invariants; in-process locking is never relied upon.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-sqlite3"

	"github.com/nkondo/timebridge/internal/domain"
)

// Ensure the repositories implement their ports.
var (
	_ domain.StoreInitializer    = (*Store)(nil)
	_ domain.SessionRepository   = (*SessionRepo)(nil)
	_ domain.TaskRepository      = (*TaskRepo)(nil)
	_ domain.TimeEntryRepository = (*EntryRepo)(nil)
)

// Store is a single SQLite handle shared by all repositories. It is
// constructed once at process start and closed at shutdown.
type Store struct {
	db       *sql.DB
	sessions *SessionRepo
	tasks    *TaskRepo
	entries  *EntryRepo
}

// Sessions returns the session repository.
func (s *Store) Sessions() *SessionRepo { return s.sessions }

// Tasks returns the task repository.
func (s *Store) Tasks() *TaskRepo { return s.tasks }

// Entries returns the time entry repository.
func (s *Store) Entries() *EntryRepo { return s.entries }

// Open opens (and creates if needed) the database at path and runs the
// schema migration.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=1&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{
		db:       db,
		sessions: &SessionRepo{db: db},
		tasks:    &TaskRepo{db: db},
		entries:  &EntryRepo{db: db},
	}
	if err := s.Initialize(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Initialize creates the schema if it doesn't exist.
func (s *Store) Initialize() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	token      TEXT NOT NULL,
	remote_url TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL,
	last_used  DATETIME NOT NULL,
	is_active  INTEGER NOT NULL DEFAULT 1
);

-- At most one active session per user; the losing concurrent writer
-- fails its insert.
CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_one_active
	ON sessions(user_id) WHERE is_active = 1;
CREATE INDEX IF NOT EXISTS idx_sessions_expiry ON sessions(expires_at, is_active);

CREATE TABLE IF NOT EXISTS tasks (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	remote_task_id  TEXT NOT NULL,
	title           TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL,
	priority        TEXT NOT NULL,
	assignees       TEXT NOT NULL DEFAULT '[]',
	tags            TEXT NOT NULL DEFAULT '[]',
	project_id      TEXT,
	project_name    TEXT,
	start_date      DATETIME,
	due_date        DATETIME,
	estimated_hours REAL,
	logged_minutes  INTEGER NOT NULL DEFAULT 0,
	last_synced     DATETIME NOT NULL,
	is_active       INTEGER NOT NULL DEFAULT 1,
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_tasks_user_remote ON tasks(user_id, remote_task_id);
CREATE INDEX IF NOT EXISTS idx_tasks_user_active ON tasks(user_id, is_active);
CREATE INDEX IF NOT EXISTS idx_tasks_user_status ON tasks(user_id, status);
CREATE INDEX IF NOT EXISTS idx_tasks_user_due ON tasks(user_id, due_date);
CREATE INDEX IF NOT EXISTS idx_tasks_user_synced ON tasks(user_id, last_synced);

-- Ranked text search over title, description and tags.
CREATE VIRTUAL TABLE IF NOT EXISTS tasks_fts USING fts5(
	title, description, tags,
	content='tasks', content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS tasks_fts_insert AFTER INSERT ON tasks BEGIN
	INSERT INTO tasks_fts(rowid, title, description, tags)
	VALUES (new.rowid, new.title, new.description, new.tags);
END;
CREATE TRIGGER IF NOT EXISTS tasks_fts_delete AFTER DELETE ON tasks BEGIN
	INSERT INTO tasks_fts(tasks_fts, rowid, title, description, tags)
	VALUES ('delete', old.rowid, old.title, old.description, old.tags);
END;
CREATE TRIGGER IF NOT EXISTS tasks_fts_update AFTER UPDATE ON tasks BEGIN
	INSERT INTO tasks_fts(tasks_fts, rowid, title, description, tags)
	VALUES ('delete', old.rowid, old.title, old.description, old.tags);
	INSERT INTO tasks_fts(rowid, title, description, tags)
	VALUES (new.rowid, new.title, new.description, new.tags);
END;

CREATE TABLE IF NOT EXISTS time_entries (
	id                TEXT PRIMARY KEY,
	user_id           TEXT NOT NULL,
	task_id           TEXT NOT NULL REFERENCES tasks(id),
	remote_task_id    TEXT NOT NULL,
	remote_timer_id   TEXT NOT NULL DEFAULT '',
	start_time        DATETIME NOT NULL,
	end_time          DATETIME,
	duration_minutes  INTEGER NOT NULL DEFAULT 0,
	notes             TEXT NOT NULL DEFAULT '',
	is_running        INTEGER NOT NULL DEFAULT 0,
	is_synced         INTEGER NOT NULL DEFAULT 0,
	synced_at         DATETIME,
	last_sync_attempt DATETIME,
	sync_error        TEXT NOT NULL DEFAULT '',
	created_at        DATETIME NOT NULL
);

-- At most one running timer per user.
CREATE UNIQUE INDEX IF NOT EXISTS idx_entries_one_running
	ON time_entries(user_id) WHERE is_running = 1;
CREATE INDEX IF NOT EXISTS idx_entries_user_start ON time_entries(user_id, start_time);
CREATE INDEX IF NOT EXISTS idx_entries_task_start ON time_entries(task_id, start_time);
CREATE INDEX IF NOT EXISTS idx_entries_sync ON time_entries(is_synced, is_running, last_sync_attempt);
`

// isUniqueViolation reports whether err is a unique constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
