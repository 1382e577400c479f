package models

import "time"

// Role is the part a connection plays in a session.
type Role string

const (
	RolePresenter   Role = "presenter"
	RoleParticipant Role = "participant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RolePresenter || r == RoleParticipant
}

// Participant is a session member allowed one answer per poll. ID is the connection id.
type Participant struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	HasAnswered bool      `json:"has_answered"`
	JoinedAt    time.Time `json:"joined_at"`
}

// Presenter holds the presenter slot of a session.
type Presenter struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joined_at"`
}
