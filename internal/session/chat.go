package session

import (
	"strings"

	"github.com/google/uuid"

	"github.com/aura-webinar/livepoll/internal/models"
)

// PostMessage appends a chat message from a session member and broadcasts it.
func (s *Session) PostMessage(connID, text string) (models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return models.Message{}, ErrEmptyMessage
	}

	s.mu.Lock()
	defer s.unlock()

	name, role, ok := s.memberLocked(connID)
	if !ok {
		return models.Message{}, ErrNotMember
	}
	msg := models.Message{
		ID:         uuid.NewString(),
		AuthorID:   connID,
		AuthorName: name,
		AuthorRole: role,
		Text:       text,
		SentAt:     s.clock.Now(),
	}
	s.messages = append(s.messages, msg)
	s.out.BroadcastToSession(s.key, EventNewMessage, msg)
	return msg, nil
}
