package domain

import "fmt"

// Status represents the remote lifecycle state of a task.
type Status string

const (
	StatusNotStarted       Status = "Not Started"
	StatusInProgress       Status = "In Progress"
	StatusTesting          Status = "Testing"
	StatusAwaitingFeedback Status = "Awaiting Feedback"
	StatusComplete         Status = "Complete"
	StatusCancelled        Status = "Cancelled"
)

// AllStatuses returns all valid status values.
func AllStatuses() []Status {
	return []Status{
		StatusNotStarted,
		StatusInProgress,
		StatusTesting,
		StatusAwaitingFeedback,
		StatusComplete,
		StatusCancelled,
	}
}

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	for _, v := range AllStatuses() {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrValidation, s)
}

// progressByStatus maps each status to a completion percentage.
var progressByStatus = map[Status]int{
	StatusNotStarted:       0,
	StatusInProgress:       25,
	StatusTesting:          75,
	StatusAwaitingFeedback: 90,
	StatusComplete:         100,
	StatusCancelled:        0,
}

// Priority represents the remote priority of a task.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
	PriorityUrgent Priority = "Urgent"
)

// AllPriorities returns all valid priority values.
func AllPriorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}
}

// ParsePriority validates a priority string.
func ParsePriority(s string) (Priority, error) {
	for _, v := range AllPriorities() {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: unknown priority %q", ErrValidation, s)
}

// rankByPriority orders priorities for sorting (higher is more urgent).
var rankByPriority = map[Priority]int{
	PriorityLow:    1,
	PriorityMedium: 2,
	PriorityHigh:   3,
	PriorityUrgent: 4,
}

// Rank returns the sort weight of the priority. Unknown priorities rank lowest.
func (p Priority) Rank() int {
	return rankByPriority[p]
}
