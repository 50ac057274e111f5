package usecase

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nkondo/timebridge/internal/domain"
)

// TaskCache maintains the local mirror of remote task records.
type TaskCache struct {
	tasks    domain.TaskRepository
	clock    domain.Clock
	logger   domain.Logger
	pageSize int
}

// NewTaskCache creates a new TaskCache. pageSize is the default Find page
// size used when the caller does not override it.
func NewTaskCache(tasks domain.TaskRepository, clock domain.Clock, logger domain.Logger, pageSize int) *TaskCache {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &TaskCache{
		tasks:    tasks,
		clock:    clock,
		logger:   logger,
		pageSize: pageSize,
	}
}

// UpsertFromRemote maps a remote task payload onto the local schema,
// creating or updating the (user, remote task id) record. Missing optional
// fields never fail; missing id or status fail with ErrValidation.
// Re-applying an unchanged payload resolves to the same stored record.
func (c *TaskCache) UpsertFromRemote(userID string, remote domain.RemoteTask) (*domain.Task, error) {
	if remote.ID == "" {
		return nil, fmt.Errorf("%w: remote task id is required", domain.ErrValidation)
	}
	if remote.Status == "" {
		return nil, fmt.Errorf("%w: remote task status is required", domain.ErrValidation)
	}
	status, err := domain.ParseStatus(remote.Status)
	if err != nil {
		return nil, err
	}

	// Priority is optional remotely; default to Medium rather than reject.
	priority := domain.PriorityMedium
	if remote.Priority != "" {
		priority, err = domain.ParsePriority(remote.Priority)
		if err != nil {
			return nil, err
		}
	}

	now := c.clock.Now()

	task, err := c.tasks.GetByRemoteID(userID, remote.ID)
	if err != nil {
		return nil, fmt.Errorf("lookup task: %w", err)
	}
	if task == nil {
		task = &domain.Task{
			ID:           uuid.NewString(),
			UserID:       userID,
			RemoteTaskID: remote.ID,
			Created:      now,
		}
	}

	task.Title = remote.Name
	task.Description = remote.Description
	task.Status = status
	task.Priority = priority
	task.StartDate = remote.StartDate
	task.DueDate = remote.DueDate
	task.EstimatedHours = remote.EstimatedHours
	task.Tags = domain.NormalizeTags(remote.Tags)
	task.Assignees = mapAssignees(remote.Assignees)
	if remote.Project != nil {
		task.Project = &domain.ProjectRef{ID: remote.Project.ID, Name: remote.Project.Name}
	} else {
		task.Project = nil
	}
	task.LastSynced = now
	task.Updated = now
	task.Active = true

	if err := task.Validate(); err != nil {
		return nil, err
	}
	if err := c.tasks.Save(task); err != nil {
		return nil, fmt.Errorf("save task: %w", err)
	}
	return task, nil
}

// Get retrieves a cached task by its local ID. Returns nil when the
// task is not cached.
func (c *TaskCache) Get(taskID string) (*domain.Task, error) {
	task, err := c.tasks.Get(taskID)
	if err != nil {
		return nil, fmt.Errorf("lookup task: %w", err)
	}
	return task, nil
}

// GetByRemoteID retrieves the user's cached task by its remote ID.
// Returns nil when the task is not cached.
func (c *TaskCache) GetByRemoteID(userID, remoteTaskID string) (*domain.Task, error) {
	task, err := c.tasks.GetByRemoteID(userID, remoteTaskID)
	if err != nil {
		return nil, fmt.Errorf("lookup task: %w", err)
	}
	return task, nil
}

// Find lists cached tasks for the user, filtered and paginated. The page
// size falls back to the cache default when unset.
func (c *TaskCache) Find(userID string, filter domain.TaskFilter, page domain.Page) ([]*domain.Task, int, error) {
	if page.Number <= 0 {
		page.Number = 1
	}
	if page.Size <= 0 {
		page.Size = c.pageSize
	}
	tasks, total, err := c.tasks.Find(userID, filter, page)
	if err != nil {
		return nil, 0, fmt.Errorf("find tasks: %w", err)
	}
	return tasks, total, nil
}

// Search performs a ranked text match over title, description and tags.
func (c *TaskCache) Search(userID, text string) ([]*domain.Task, error) {
	tasks, err := c.tasks.Search(userID, text)
	if err != nil {
		return nil, fmt.Errorf("search tasks: %w", err)
	}
	return tasks, nil
}

// StaleTasks returns active tasks whose lastSynced predates the threshold.
func (c *TaskCache) StaleTasks(userID string, olderThan time.Duration) ([]*domain.Task, error) {
	cutoff := c.clock.Now().Add(-olderThan)
	tasks, err := c.tasks.Stale(userID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("stale tasks: %w", err)
	}
	return tasks, nil
}

// Deactivate soft-deletes a task; it no longer appears in default
// Find/Search results.
func (c *TaskCache) Deactivate(taskID string) error {
	if err := c.tasks.Deactivate(taskID); err != nil {
		return fmt.Errorf("deactivate task: %w", err)
	}
	return nil
}

// AddLoggedMinutes accumulates tracked minutes on a task after a stop.
func (c *TaskCache) AddLoggedMinutes(taskID string, minutes int) error {
	if minutes <= 0 {
		return nil
	}
	if err := c.tasks.AddLoggedMinutes(taskID, minutes); err != nil {
		return fmt.Errorf("add logged minutes: %w", err)
	}
	return nil
}

func mapAssignees(in []domain.RemoteAssignee) []domain.Assignee {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.Assignee, len(in))
	for i, a := range in {
		out[i] = domain.Assignee{ID: a.ID, Name: a.Name, Email: a.Email}
	}
	return out
}
