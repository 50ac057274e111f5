package domain

import "time"

// Session is one authenticated session against the remote system.
// The token never leaves the session store.
// Fields are ordered to minimize memory padding.
type Session struct {
	Created   time.Time `json:"created"`
	ExpiresAt time.Time `json:"expiresAt"`
	LastUsed  time.Time `json:"lastUsed"`
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Token     string    `json:"-"`
	RemoteURL string    `json:"remoteUrl,omitempty"`
	Active    bool      `json:"active"`
}

// IsExpired reports whether the session has passed its expiry.
func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// IsValid reports whether the session may be handed to a caller.
func (s *Session) IsValid(now time.Time) bool {
	return s.Active && !s.IsExpired(now)
}
