// Package domain contains core business entities and interfaces.
package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Field caps mirrored from the remote schema.
const (
	MaxTitleLen       = 500
	MaxDescriptionLen = 5000
	MaxTagLen         = 50
	MaxEstimatedHours = 9999
)

// Assignee is a person assigned to a task on the remote system.
type Assignee struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// ProjectRef identifies the remote project a task belongs to.
type ProjectRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Task is the local cache entry mirroring one remote task.
// Fields are ordered to minimize memory padding.
type Task struct {
	Created        time.Time  `json:"created"`
	Updated        time.Time  `json:"updated"`
	LastSynced     time.Time  `json:"lastSynced"`
	StartDate      *time.Time `json:"startDate,omitempty"`
	DueDate        *time.Time `json:"dueDate,omitempty"`
	EstimatedHours *float64   `json:"estimatedHours,omitempty"`
	Project        *ProjectRef `json:"project,omitempty"`
	ID             string     `json:"id"`
	UserID         string     `json:"userId"`
	RemoteTaskID   string     `json:"remoteTaskId"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Status         Status     `json:"status"`
	Priority       Priority   `json:"priority"`
	Assignees      []Assignee `json:"assignees,omitempty"`
	Tags           []string   `json:"tags,omitempty"`
	LoggedMinutes  int        `json:"loggedMinutes"`
	Active         bool       `json:"active"`
}

// Validate checks structural invariants of a task before persistence.
func (t *Task) Validate() error {
	if t.UserID == "" {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if t.RemoteTaskID == "" {
		return fmt.Errorf("%w: remote task id is required", ErrValidation)
	}
	if t.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if len(t.Title) > MaxTitleLen {
		return fmt.Errorf("%w: title exceeds %d characters", ErrValidation, MaxTitleLen)
	}
	if len(t.Description) > MaxDescriptionLen {
		return fmt.Errorf("%w: description exceeds %d characters", ErrValidation, MaxDescriptionLen)
	}
	if _, err := ParseStatus(string(t.Status)); err != nil {
		return err
	}
	if _, err := ParsePriority(string(t.Priority)); err != nil {
		return err
	}
	if t.StartDate != nil && t.DueDate != nil && t.DueDate.Before(*t.StartDate) {
		return fmt.Errorf("%w: due date precedes start date", ErrValidation)
	}
	if t.EstimatedHours != nil && (*t.EstimatedHours < 0 || *t.EstimatedHours > MaxEstimatedHours) {
		return fmt.Errorf("%w: estimated hours out of range", ErrValidation)
	}
	for _, tag := range t.Tags {
		if len(tag) > MaxTagLen {
			return fmt.Errorf("%w: tag exceeds %d characters", ErrValidation, MaxTagLen)
		}
	}
	return nil
}

// NormalizeTags trims tags, drops empty ones and removes duplicates,
// preserving first-seen order.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ProgressPercentage returns the completion percentage implied by the status.
func (t *Task) ProgressPercentage() int {
	return progressByStatus[t.Status]
}

// TimeEfficiency compares the estimate against logged time as a percentage.
// Returns false when there is no estimate or no logged time.
func (t *Task) TimeEfficiency() (int, bool) {
	if t.EstimatedHours == nil || *t.EstimatedHours == 0 || t.LoggedMinutes == 0 {
		return 0, false
	}
	loggedHours := float64(t.LoggedMinutes) / 60
	return int(math.Round(*t.EstimatedHours / loggedHours * 100)), true
}

// IsOverdue reports whether the task is past its due date and not complete.
func (t *Task) IsOverdue(now time.Time) bool {
	if t.DueDate == nil {
		return false
	}
	return t.DueDate.Before(now) && t.Status != StatusComplete
}

// DaysUntilDue returns the number of days until the due date, rounded up.
// Returns false when no due date is set.
func (t *Task) DaysUntilDue(now time.Time) (int, bool) {
	if t.DueDate == nil {
		return 0, false
	}
	return int(math.Ceil(t.DueDate.Sub(now).Hours() / 24)), true
}
