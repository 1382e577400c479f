package models

import (
	"time"
)

// Option is one choice of a live poll.
type Option struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
	Votes     int    `json:"votes"`
}

// Poll is a single question broadcast by the presenter.
// Answers maps participant id -> chosen option id; a participant appears at most once.
type Poll struct {
	ID               string            `json:"id"`
	Question         string            `json:"question"`
	Options          []Option          `json:"options"`
	TimeLimitSeconds int               `json:"time_limit"`
	CreatedAt        time.Time         `json:"created_at"`
	EndedAt          *time.Time        `json:"ended_at,omitempty"`
	IsActive         bool              `json:"is_active"`
	AnswerCount      int               `json:"answer_count"`
	Answers          map[string]string `json:"answers,omitempty"`
}

// Clone returns a deep copy of the poll.
func (p *Poll) Clone() Poll {
	out := *p
	out.Options = make([]Option, len(p.Options))
	copy(out.Options, p.Options)
	if p.EndedAt != nil {
		t := *p.EndedAt
		out.EndedAt = &t
	}
	out.Answers = make(map[string]string, len(p.Answers))
	for k, v := range p.Answers {
		out.Answers[k] = v
	}
	out.AnswerCount = len(p.Answers)
	return out
}

// Public returns a deep copy without the per-participant answer map, for session-wide broadcast.
func (p *Poll) Public() Poll {
	out := p.Clone()
	out.Answers = nil
	return out
}

// TotalVotes sums the option tallies.
func (p *Poll) TotalVotes() int {
	n := 0
	for _, o := range p.Options {
		n += o.Votes
	}
	return n
}

// Option returns the option with the given id.
func (p *Poll) Option(id string) (*Option, bool) {
	for i := range p.Options {
		if p.Options[i].ID == id {
			return &p.Options[i], true
		}
	}
	return nil, false
}
