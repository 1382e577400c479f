package models

import "time"

// Message is one chat line; immutable once appended to a session.
type Message struct {
	ID         string    `json:"id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	AuthorRole Role      `json:"author_role"`
	Text       string    `json:"text"`
	SentAt     time.Time `json:"sent_at"`
}
