package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nkondo/timebridge/internal/domain"
)

const entryColumns = `id, user_id, task_id, remote_task_id, remote_timer_id,
	start_time, end_time, duration_minutes, notes, is_running, is_synced,
	synced_at, last_sync_attempt, sync_error, created_at`

// EntryRepo implements domain.TimeEntryRepository on the shared handle.
type EntryRepo struct {
	db *sql.DB
}

// Get retrieves an entry by ID.
func (r *EntryRepo) Get(id string) (*domain.TimeEntry, error) {
	row := r.db.QueryRow(`SELECT `+entryColumns+` FROM time_entries WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query entry: %w", err)
	}
	return entry, nil
}

// Running retrieves the user's running entry.
func (r *EntryRepo) Running(userID string) (*domain.TimeEntry, error) {
	row := r.db.QueryRow(`
		SELECT `+entryColumns+` FROM time_entries
		WHERE user_id = ? AND is_running = 1
	`, userID)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query running entry: %w", err)
	}
	return entry, nil
}

// InsertRunning inserts a new running entry. The partial unique index on
// (user_id) WHERE is_running rejects a second concurrent running entry,
// surfaced as ErrTimerAlreadyRunning.
func (r *EntryRepo) InsertRunning(e *domain.TimeEntry) error {
	_, err := r.db.Exec(`
		INSERT INTO time_entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, 0, NULL, NULL, '', ?)
	`, e.ID, e.UserID, e.TaskID, e.RemoteTaskID, e.RemoteTimerID,
		e.StartTime, nullTime(e.EndTime), e.DurationMinutes, e.Notes, e.Created)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrTimerAlreadyRunning
		}
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// Save updates an existing entry.
func (r *EntryRepo) Save(e *domain.TimeEntry) error {
	res, err := r.db.Exec(`
		UPDATE time_entries SET
			remote_timer_id = ?,
			end_time = ?,
			duration_minutes = ?,
			notes = ?,
			is_running = ?,
			is_synced = ?,
			synced_at = ?,
			last_sync_attempt = ?,
			sync_error = ?
		WHERE id = ?
	`, e.RemoteTimerID, nullTime(e.EndTime), e.DurationMinutes, e.Notes,
		e.IsRunning, e.IsSynced, nullTime(e.SyncedAt), nullTime(e.LastSyncAttempt),
		e.SyncError, e.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrTimerAlreadyRunning
		}
		return fmt.Errorf("update entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrEntryNotFound
	}
	return nil
}

// List retrieves entries for a user, newest start first.
func (r *EntryRepo) List(userID string, filter domain.EntryFilter) ([]*domain.TimeEntry, error) {
	where := []string{"user_id = ?"}
	args := []any{userID}

	if filter.TaskID != "" {
		where = append(where, "task_id = ?")
		args = append(args, filter.TaskID)
	}
	if filter.IsRunning != nil {
		where = append(where, "is_running = ?")
		args = append(args, *filter.IsRunning)
	}
	if filter.IsSynced != nil {
		where = append(where, "is_synced = ?")
		args = append(args, *filter.IsSynced)
	}
	if filter.From != nil {
		where = append(where, "start_time >= ?")
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		where = append(where, "start_time <= ?")
		args = append(args, *filter.To)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(`
		SELECT `+entryColumns+` FROM time_entries
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY start_time DESC
		LIMIT ? OFFSET ?
	`, append(args, limit, filter.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

// Unsynced retrieves stopped, unsynced entries with an end time, oldest
// end first.
func (r *EntryRepo) Unsynced(limit int) ([]*domain.TimeEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(`
		SELECT `+entryColumns+` FROM time_entries
		WHERE is_synced = 0 AND is_running = 0 AND end_time IS NOT NULL
		ORDER BY end_time ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query unsynced entries: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

// Stats aggregates the user's stopped entries.
func (r *EntryRepo) Stats(userID string, from, to *time.Time) (*domain.TimeStats, error) {
	where := []string{"user_id = ?", "is_running = 0"}
	args := []any{userID}
	if from != nil {
		where = append(where, "start_time >= ?")
		args = append(args, *from)
	}
	if to != nil {
		where = append(where, "start_time <= ?")
		args = append(args, *to)
	}

	var stats domain.TimeStats
	err := r.db.QueryRow(`
		SELECT COUNT(*),
			COALESCE(SUM(duration_minutes), 0),
			COALESCE(AVG(duration_minutes), 0),
			COALESCE(SUM(is_synced), 0)
		FROM time_entries
		WHERE `+strings.Join(where, " AND "),
		args...,
	).Scan(&stats.TotalEntries, &stats.TotalMinutes, &stats.AvgMinutes, &stats.SyncedEntries)
	if err != nil {
		return nil, fmt.Errorf("aggregate entries: %w", err)
	}
	return &stats, nil
}

// DailyStats rolls up stopped entries per day since the given time.
func (r *EntryRepo) DailyStats(userID string, since time.Time) ([]domain.DailyStat, error) {
	rows, err := r.db.Query(`
		SELECT strftime('%Y-%m-%d', start_time),
			COALESCE(SUM(duration_minutes), 0),
			COUNT(*)
		FROM time_entries
		WHERE user_id = ? AND is_running = 0 AND start_time >= ?
		GROUP BY 1
		ORDER BY 1
	`, userID, since)
	if err != nil {
		return nil, fmt.Errorf("aggregate daily: %w", err)
	}
	defer rows.Close()

	var stats []domain.DailyStat
	for rows.Next() {
		var d domain.DailyStat
		if err := rows.Scan(&d.Day, &d.TotalMinutes, &d.EntryCount); err != nil {
			return nil, err
		}
		stats = append(stats, d)
	}
	return stats, rows.Err()
}

// TaskStats aggregates stopped entries for one task.
func (r *EntryRepo) TaskStats(taskID string) (*domain.TaskStats, error) {
	var (
		stats      domain.TaskStats
		firstStart sql.NullTime
		lastEnd    sql.NullTime
	)
	err := r.db.QueryRow(`
		SELECT COUNT(*),
			COALESCE(SUM(duration_minutes), 0),
			COALESCE(AVG(duration_minutes), 0),
			MIN(start_time),
			MAX(end_time)
		FROM time_entries
		WHERE task_id = ? AND is_running = 0
	`, taskID).Scan(&stats.EntryCount, &stats.TotalMinutes, &stats.AvgMinutes, &firstStart, &lastEnd)
	if err != nil {
		return nil, fmt.Errorf("aggregate task entries: %w", err)
	}
	if firstStart.Valid {
		t := firstStart.Time
		stats.FirstStart = &t
	}
	if lastEnd.Valid {
		t := lastEnd.Time
		stats.LastEnd = &t
	}
	return &stats, nil
}

func collectEntries(rows *sql.Rows) ([]*domain.TimeEntry, error) {
	var entries []*domain.TimeEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanEntry(row rowScanner) (*domain.TimeEntry, error) {
	var (
		entry                              domain.TimeEntry
		endTime, syncedAt, lastSyncAttempt sql.NullTime
	)
	err := row.Scan(&entry.ID, &entry.UserID, &entry.TaskID, &entry.RemoteTaskID,
		&entry.RemoteTimerID, &entry.StartTime, &endTime, &entry.DurationMinutes,
		&entry.Notes, &entry.IsRunning, &entry.IsSynced, &syncedAt,
		&lastSyncAttempt, &entry.SyncError, &entry.Created)
	if err != nil {
		return nil, err
	}
	if endTime.Valid {
		t := endTime.Time
		entry.EndTime = &t
	}
	if syncedAt.Valid {
		t := syncedAt.Time
		entry.SyncedAt = &t
	}
	if lastSyncAttempt.Valid {
		t := lastSyncAttempt.Time
		entry.LastSyncAttempt = &t
	}
	return &entry, nil
}
