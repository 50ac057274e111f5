package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTask() *Task {
	return &Task{
		ID:           "t1",
		UserID:       "alice",
		RemoteTaskID: "101",
		Title:        "Fix login redirect",
		Status:       StatusInProgress,
		Priority:     PriorityHigh,
		Active:       true,
	}
}

func TestTask_Validate_Success(t *testing.T) {
	assert.NoError(t, validTask().Validate())
}

func TestTask_Validate_RequiredFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Task)
	}{
		{"missing user", func(task *Task) { task.UserID = "" }},
		{"missing remote id", func(task *Task) { task.RemoteTaskID = "" }},
		{"missing title", func(task *Task) { task.Title = "" }},
		{"unknown status", func(task *Task) { task.Status = "Parked" }},
		{"unknown priority", func(task *Task) { task.Priority = "Extreme" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := validTask()
			tt.mutate(task)
			assert.ErrorIs(t, task.Validate(), ErrValidation)
		})
	}
}

func TestTask_Validate_FieldCaps(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Task)
	}{
		{"title too long", func(task *Task) { task.Title = strings.Repeat("x", MaxTitleLen+1) }},
		{"description too long", func(task *Task) { task.Description = strings.Repeat("x", MaxDescriptionLen+1) }},
		{"tag too long", func(task *Task) { task.Tags = []string{strings.Repeat("x", MaxTagLen+1)} }},
		{"negative estimate", func(task *Task) { h := -1.0; task.EstimatedHours = &h }},
		{"estimate too large", func(task *Task) { h := 10000.0; task.EstimatedHours = &h }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := validTask()
			tt.mutate(task)
			assert.ErrorIs(t, task.Validate(), ErrValidation)
		})
	}
}

func TestTask_Validate_DueBeforeStart(t *testing.T) {
	task := validTask()
	start := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
	due := start.AddDate(0, 0, -1)
	task.StartDate = &start
	task.DueDate = &due

	assert.ErrorIs(t, task.Validate(), ErrValidation)
}

func TestNormalizeTags(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil", nil, nil},
		{"all empty", []string{"", "  "}, nil},
		{"trims", []string{" auth "}, []string{"auth"}},
		{"dedupes preserving order", []string{"b", "a", "b"}, []string{"b", "a"}},
		{"mixed", []string{" auth ", "", "auth", "bug"}, []string{"auth", "bug"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTags(tt.in))
		})
	}
}

func TestTask_ProgressPercentage(t *testing.T) {
	tests := []struct {
		status Status
		want   int
	}{
		{StatusNotStarted, 0},
		{StatusInProgress, 25},
		{StatusTesting, 75},
		{StatusAwaitingFeedback, 90},
		{StatusComplete, 100},
		{StatusCancelled, 0},
	}
	for _, tt := range tests {
		task := validTask()
		task.Status = tt.status
		assert.Equal(t, tt.want, task.ProgressPercentage(), string(tt.status))
	}
}

func TestTask_TimeEfficiency(t *testing.T) {
	// 8h estimated, 10h logged -> 80%
	task := validTask()
	hours := 8.0
	task.EstimatedHours = &hours
	task.LoggedMinutes = 600

	eff, ok := task.TimeEfficiency()
	require.True(t, ok)
	assert.Equal(t, 80, eff)
}

func TestTask_TimeEfficiency_Undefined(t *testing.T) {
	// No estimate, or nothing logged yet
	task := validTask()
	_, ok := task.TimeEfficiency()
	assert.False(t, ok)

	hours := 8.0
	task.EstimatedHours = &hours
	_, ok = task.TimeEfficiency()
	assert.False(t, ok, "no logged time yet")

	zero := 0.0
	task.EstimatedHours = &zero
	task.LoggedMinutes = 60
	_, ok = task.TimeEfficiency()
	assert.False(t, ok, "zero estimate")
}

func TestTask_IsOverdue(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	task := validTask()
	assert.False(t, task.IsOverdue(now), "no due date")

	task.DueDate = &future
	assert.False(t, task.IsOverdue(now))

	task.DueDate = &past
	assert.True(t, task.IsOverdue(now))

	task.Status = StatusComplete
	assert.False(t, task.IsOverdue(now), "complete tasks are never overdue")
}

func TestTask_DaysUntilDue(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	task := validTask()
	_, ok := task.DaysUntilDue(now)
	assert.False(t, ok, "no due date")

	due := now.Add(36 * time.Hour)
	task.DueDate = &due
	days, ok := task.DaysUntilDue(now)
	require.True(t, ok)
	assert.Equal(t, 2, days, "partial days round up")

	past := now.Add(-36 * time.Hour)
	task.DueDate = &past
	days, ok = task.DaysUntilDue(now)
	require.True(t, ok)
	assert.Equal(t, -1, days)
}

func TestPriority_Rank(t *testing.T) {
	assert.Greater(t, PriorityUrgent.Rank(), PriorityHigh.Rank())
	assert.Greater(t, PriorityHigh.Rank(), PriorityMedium.Rank())
	assert.Greater(t, PriorityMedium.Rank(), PriorityLow.Rank())
	assert.Equal(t, 0, Priority("bogus").Rank())
}

func TestParseStatus(t *testing.T) {
	status, err := ParseStatus("Awaiting Feedback")
	require.NoError(t, err)
	assert.Equal(t, StatusAwaitingFeedback, status)

	_, err = ParseStatus("awaiting feedback")
	assert.ErrorIs(t, err, ErrValidation, "parsing is case sensitive")
}

func TestParsePriority(t *testing.T) {
	priority, err := ParsePriority("Urgent")
	require.NoError(t, err)
	assert.Equal(t, PriorityUrgent, priority)

	_, err = ParsePriority("")
	assert.ErrorIs(t, err, ErrValidation)
}
