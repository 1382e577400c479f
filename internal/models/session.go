package models

// Snapshot is the full state sent to a connection when it joins.
type Snapshot struct {
	ConnectionID string        `json:"connection_id"`
	Role         Role          `json:"role"`
	SessionKey   string        `json:"session_key"`
	Presenter    *Presenter    `json:"presenter,omitempty"`
	CurrentPoll  *Poll         `json:"current_poll"`
	Participants []Participant `json:"participants"`
	Messages     []Message     `json:"messages"`
}

// SessionSummary is the public, read-only view served over HTTP.
type SessionSummary struct {
	SessionKey         string `json:"session_key"`
	PresenterConnected bool   `json:"presenter_connected"`
	ParticipantCount   int    `json:"participant_count"`
	CurrentPoll        *Poll  `json:"current_poll"`
	CompletedPolls     int    `json:"completed_polls"`
	Connections        int    `json:"connections"`
}

// ArchivedPoll is a closed poll handed to the archive pipeline.
type ArchivedPoll struct {
	SessionKey  string `json:"session_key"`
	CloseReason string `json:"close_reason"`
	Poll        Poll   `json:"poll"`
}
