package session

import "github.com/aura-webinar/livepoll/internal/models"

// Outbound event names.
const (
	EventSessionSnapshot        = "session-snapshot"
	EventPollStarted            = "poll-started"
	EventPollProgress           = "poll-progress"
	EventPollClosed             = "poll-closed"
	EventParticipantListChanged = "participant-list-changed"
	EventNewMessage             = "new-message"
	EventRemoved                = "removed"
	EventPollInProgress         = "poll-in-progress"
	EventPollHistory            = "poll-history"
	EventPresenterReplaced      = "presenter-replaced"
)

// Close reasons carried on poll-closed.
const (
	CloseReasonTimeout     = "timeout"
	CloseReasonAllAnswered = "all-answered"
)

// Broadcaster delivers events to the connections of a session.
// Implementations must not block: the session emits while holding its lock.
type Broadcaster interface {
	BroadcastToSession(sessionKey, event string, payload interface{})
	BroadcastToSessionExcept(sessionKey, exceptConnID, event string, payload interface{})
	SendToClient(sessionKey, connID, event string, payload interface{})
	// Evict terminates a connection after its queued events are flushed.
	Evict(sessionKey, connID string)
}

// ClosedPollHandler is called once per closed poll, outside the session lock.
type ClosedPollHandler func(sessionKey, reason string, poll models.Poll)

type participantListPayload struct {
	Reason       string               `json:"reason"`
	Name         string               `json:"name,omitempty"`
	Role         models.Role          `json:"role,omitempty"`
	Participants []models.Participant `json:"participants"`
}

type pollProgressPayload struct {
	Poll         models.Poll          `json:"poll"`
	Participants []models.Participant `json:"participants"`
}

type pollClosedPayload struct {
	Poll   models.Poll `json:"poll"`
	Reason string      `json:"reason"`
}
