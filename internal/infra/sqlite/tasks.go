package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nkondo/timebridge/internal/domain"
)

const taskColumns = `id, user_id, remote_task_id, title, description, status, priority,
	assignees, tags, project_id, project_name, start_date, due_date,
	estimated_hours, logged_minutes, last_synced, is_active, created_at, updated_at`

// prioritySQL orders priorities Urgent > High > Medium > Low in SQL.
const prioritySQL = `CASE priority
	WHEN 'Urgent' THEN 4 WHEN 'High' THEN 3 WHEN 'Medium' THEN 2 WHEN 'Low' THEN 1
	ELSE 0 END`

// TaskRepo implements domain.TaskRepository on the shared handle.
type TaskRepo struct {
	db *sql.DB
}

// Get retrieves a task by local ID.
func (r *TaskRepo) Get(id string) (*domain.Task, error) {
	row := r.db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}
	return task, nil
}

// GetByRemoteID retrieves a task by (user, remote task id).
func (r *TaskRepo) GetByRemoteID(userID, remoteTaskID string) (*domain.Task, error) {
	row := r.db.QueryRow(`
		SELECT `+taskColumns+` FROM tasks
		WHERE user_id = ? AND remote_task_id = ?
	`, userID, remoteTaskID)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}
	return task, nil
}

// Save creates or updates a task. The (user_id, remote_task_id) unique
// index resolves concurrent upserts to the same row. logged_minutes is
// locally owned and only ever moves through AddLoggedMinutes; an update
// never rewrites it from the caller's possibly stale snapshot.
func (r *TaskRepo) Save(task *domain.Task) error {
	assignees, err := json.Marshal(emptySlice(task.Assignees))
	if err != nil {
		return fmt.Errorf("encode assignees: %w", err)
	}
	tags, err := json.Marshal(emptyStrings(task.Tags))
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}

	var projectID, projectName sql.NullString
	if task.Project != nil {
		projectID = sql.NullString{String: task.Project.ID, Valid: true}
		projectName = sql.NullString{String: task.Project.Name, Valid: true}
	}

	_, err = r.db.Exec(`
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, remote_task_id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			status = excluded.status,
			priority = excluded.priority,
			assignees = excluded.assignees,
			tags = excluded.tags,
			project_id = excluded.project_id,
			project_name = excluded.project_name,
			start_date = excluded.start_date,
			due_date = excluded.due_date,
			estimated_hours = excluded.estimated_hours,
			last_synced = excluded.last_synced,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`, task.ID, task.UserID, task.RemoteTaskID, task.Title, task.Description,
		string(task.Status), string(task.Priority), string(assignees), string(tags),
		projectID, projectName, nullTime(task.StartDate), nullTime(task.DueDate),
		nullFloat(task.EstimatedHours), task.LoggedMinutes, task.LastSynced,
		task.Active, task.Created, task.Updated)
	if err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

// Find retrieves tasks matching the filter, sorted by due date ascending
// (no due date last), then priority descending, then creation descending.
func (r *TaskRepo) Find(userID string, filter domain.TaskFilter, page domain.Page) ([]*domain.Task, int, error) {
	where := []string{"user_id = ?"}
	args := []any{userID}

	if !filter.IncludeInactive {
		where = append(where, "is_active = 1")
	}
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.Priority != nil {
		where = append(where, "priority = ?")
		args = append(args, string(*filter.Priority))
	}
	if filter.ProjectID != "" {
		where = append(where, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM tasks WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	if page.Size <= 0 {
		page.Size = 50
	}
	if page.Number <= 0 {
		page.Number = 1
	}
	offset := (page.Number - 1) * page.Size

	rows, err := r.db.Query(`
		SELECT `+taskColumns+` FROM tasks
		WHERE `+cond+`
		ORDER BY (due_date IS NULL), due_date ASC, `+prioritySQL+` DESC, created_at DESC
		LIMIT ? OFFSET ?
	`, append(args, page.Size, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	tasks, err := collectTasks(rows)
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

// Search performs a bm25-ranked FTS match over title, description and
// tags of the user's active tasks. Ties break by due date.
func (r *TaskRepo) Search(userID, query string) ([]*domain.Task, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}

	rows, err := r.db.Query(`
		SELECT `+prefixedTaskColumns("t")+`
		FROM tasks_fts f
		JOIN tasks t ON t.rowid = f.rowid
		WHERE tasks_fts MATCH ? AND t.user_id = ? AND t.is_active = 1
		ORDER BY bm25(tasks_fts), (t.due_date IS NULL), t.due_date ASC
	`, match, userID)
	if err != nil {
		return nil, fmt.Errorf("search tasks: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

// Stale retrieves active tasks last synced before the threshold.
func (r *TaskRepo) Stale(userID string, olderThan time.Time) ([]*domain.Task, error) {
	rows, err := r.db.Query(`
		SELECT `+taskColumns+` FROM tasks
		WHERE user_id = ? AND is_active = 1 AND last_synced < ?
		ORDER BY last_synced ASC
	`, userID, olderThan)
	if err != nil {
		return nil, fmt.Errorf("query stale tasks: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

// ActiveRemoteIDs lists remote IDs of the user's active tasks.
func (r *TaskRepo) ActiveRemoteIDs(userID string) ([]string, error) {
	rows, err := r.db.Query(`SELECT remote_task_id FROM tasks WHERE user_id = ? AND is_active = 1`, userID)
	if err != nil {
		return nil, fmt.Errorf("query remote ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Deactivate soft-deletes a task.
func (r *TaskRepo) Deactivate(id string) error {
	res, err := r.db.Exec(`UPDATE tasks SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

// AddLoggedMinutes accumulates logged time on a task.
func (r *TaskRepo) AddLoggedMinutes(id string, minutes int) error {
	res, err := r.db.Exec(`UPDATE tasks SET logged_minutes = logged_minutes + ? WHERE id = ?`, minutes, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

// ftsQuery turns free-form user text into a prefix-match FTS5 query,
// dropping anything that could be parsed as FTS syntax.
func ftsQuery(text string) string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	})
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		terms = append(terms, f+"*")
	}
	return strings.Join(terms, " ")
}

func prefixedTaskColumns(alias string) string {
	cols := strings.Split(taskColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

func collectTasks(rows *sql.Rows) ([]*domain.Task, error) {
	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task                   domain.Task
		status, priority       string
		assignees, tags        string
		projectID, projectName sql.NullString
		startDate, dueDate     sql.NullTime
		estimatedHours         sql.NullFloat64
	)
	err := row.Scan(&task.ID, &task.UserID, &task.RemoteTaskID, &task.Title,
		&task.Description, &status, &priority, &assignees, &tags,
		&projectID, &projectName, &startDate, &dueDate, &estimatedHours,
		&task.LoggedMinutes, &task.LastSynced, &task.Active, &task.Created, &task.Updated)
	if err != nil {
		return nil, err
	}

	task.Status = domain.Status(status)
	task.Priority = domain.Priority(priority)
	if err := json.Unmarshal([]byte(assignees), &task.Assignees); err != nil {
		return nil, fmt.Errorf("decode assignees: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &task.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if len(task.Assignees) == 0 {
		task.Assignees = nil
	}
	if len(task.Tags) == 0 {
		task.Tags = nil
	}
	if projectID.Valid {
		task.Project = &domain.ProjectRef{ID: projectID.String, Name: projectName.String}
	}
	if startDate.Valid {
		t := startDate.Time
		task.StartDate = &t
	}
	if dueDate.Valid {
		t := dueDate.Time
		task.DueDate = &t
	}
	if estimatedHours.Valid {
		h := estimatedHours.Float64
		task.EstimatedHours = &h
	}
	return &task, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func emptySlice(a []domain.Assignee) []domain.Assignee {
	if a == nil {
		return []domain.Assignee{}
	}
	return a
}

func emptyStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
