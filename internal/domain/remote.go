package domain

import "time"

// Credentials authenticate a user against the remote system.
type Credentials struct {
	Email    string
	Password string
}

// RemoteAssignee is an assignee as reported by the remote system.
type RemoteAssignee struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// RemoteProject is a project reference as reported by the remote system.
type RemoteProject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RemoteTask is one task payload from the remote system. Optional fields
// are pointers; unrecognized remote fields are dropped at the transport
// layer rather than carried through as untyped blobs.
// Fields are ordered to minimize memory padding.
type RemoteTask struct {
	StartDate      *time.Time       `json:"startDate,omitempty"`
	DueDate        *time.Time       `json:"dueDate,omitempty"`
	EstimatedHours *float64         `json:"estimatedHours,omitempty"`
	Project        *RemoteProject   `json:"project,omitempty"`
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Description    string           `json:"description,omitempty"`
	Status         string           `json:"status"`
	Priority       string           `json:"priority"`
	Assignees      []RemoteAssignee `json:"assignees,omitempty"`
	Tags           []string         `json:"tags,omitempty"`
}
