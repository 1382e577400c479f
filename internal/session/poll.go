package session

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/livepoll/internal/models"
)

// OptionRequest is one option of a create-poll request.
type OptionRequest struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// PollRequest is the presenter's create-poll command.
type PollRequest struct {
	Question         string          `json:"question"`
	Options          []OptionRequest `json:"options"`
	TimeLimitSeconds int             `json:"time_limit"`
}

// Validate checks the request without touching any session state.
func (req PollRequest) Validate() error {
	if strings.TrimSpace(req.Question) == "" {
		return ErrEmptyQuestion
	}
	if len(req.Options) < 2 {
		return ErrTooFewOptions
	}
	for _, o := range req.Options {
		if strings.TrimSpace(o.Text) == "" {
			return ErrEmptyOption
		}
	}
	return nil
}

// CreatePoll starts a new poll. Only the presenter may call it, and only while no
// poll is active; a rejected presenter receives poll-in-progress.
func (s *Session) CreatePoll(requesterID string, req PollRequest) (models.Poll, error) {
	s.mu.Lock()
	defer s.unlock()

	if !s.isPresenterLocked(requesterID) {
		return models.Poll{}, ErrNotPresenter
	}
	if s.currentPoll != nil && s.currentPoll.IsActive {
		s.out.SendToClient(s.key, requesterID, EventPollInProgress, map[string]string{"poll_id": s.currentPoll.ID})
		return models.Poll{}, ErrPollInProgress
	}
	if err := req.Validate(); err != nil {
		return models.Poll{}, err
	}

	limit := s.timeLimit(req.TimeLimitSeconds)
	poll := &models.Poll{
		ID:               uuid.NewString(),
		Question:         strings.TrimSpace(req.Question),
		Options:          make([]models.Option, 0, len(req.Options)),
		TimeLimitSeconds: int(limit / time.Second),
		CreatedAt:        s.clock.Now(),
		IsActive:         true,
		Answers:          make(map[string]string),
	}
	for _, o := range req.Options {
		poll.Options = append(poll.Options, models.Option{
			ID:        uuid.NewString(),
			Text:      strings.TrimSpace(o.Text),
			IsCorrect: o.IsCorrect,
		})
	}

	for _, p := range s.participants {
		p.HasAnswered = false
	}
	s.currentPoll = poll
	s.out.BroadcastToSession(s.key, EventPollStarted, poll.Public())

	pollID := poll.ID
	s.timer = s.clock.AfterFunc(limit, func() {
		s.closePoll(pollID, CloseReasonTimeout)
	})

	s.logger.Info("poll started",
		zap.String("poll_id", pollID),
		zap.Int("options", len(poll.Options)),
		zap.Duration("time_limit", limit),
	)
	return poll.Clone(), nil
}

// SubmitAnswer records a participant's single answer to the active poll. Late,
// duplicate and unknown-participant submissions are discarded. An unknown option id
// still counts as answered but leaves the tallies untouched.
func (s *Session) SubmitAnswer(participantID, optionID string) error {
	s.mu.Lock()
	defer s.unlock()

	poll := s.currentPoll
	if poll == nil || !poll.IsActive {
		return ErrNoActivePoll
	}
	p, ok := s.participants[participantID]
	if !ok {
		return ErrUnknownParticipant
	}
	if _, answered := poll.Answers[participantID]; answered || p.HasAnswered {
		return ErrAlreadyAnswered
	}

	poll.Answers[participantID] = optionID
	if opt, ok := poll.Option(optionID); ok {
		opt.Votes++
	} else {
		s.logger.Warn("answer with unknown option", zap.String("poll_id", poll.ID), zap.String("option_id", optionID))
	}
	p.HasAnswered = true

	s.out.BroadcastToSession(s.key, EventPollProgress, pollProgressPayload{
		Poll:         poll.Public(),
		Participants: s.participantListLocked(),
	})

	if s.allAnsweredLocked() {
		s.closeLocked(poll.ID, CloseReasonAllAnswered)
	}
	return nil
}

// RequestHistory sends the completed polls to the presenter and returns them.
func (s *Session) RequestHistory(requesterID string) ([]models.Poll, error) {
	s.mu.Lock()
	defer s.unlock()

	if !s.isPresenterLocked(requesterID) {
		return nil, ErrNotPresenter
	}
	history := s.historyLocked()
	s.out.SendToClient(s.key, requesterID, EventPollHistory, history)
	return history, nil
}

// closePoll is the timer entry point into the guarded close.
func (s *Session) closePoll(pollID, reason string) bool {
	s.mu.Lock()
	defer s.unlock()
	closed := s.closeLocked(pollID, reason)
	if !closed {
		s.logger.Debug("stale close ignored", zap.String("poll_id", pollID), zap.String("reason", reason))
	}
	return closed
}

// closeLocked is the only active -> closed transition. It is a no-op unless pollID is
// the current poll and that poll is still active, so the timer and the all-answered
// path can race freely and the loser does nothing.
func (s *Session) closeLocked(pollID, reason string) bool {
	poll := s.currentPoll
	if poll == nil || poll.ID != pollID || !poll.IsActive {
		return false
	}

	now := s.clock.Now()
	poll.IsActive = false
	poll.EndedAt = &now
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	s.history = append(s.history, poll.Clone())
	s.out.BroadcastToSession(s.key, EventPollClosed, pollClosedPayload{Poll: poll.Public(), Reason: reason})
	s.pendingClose = append(s.pendingClose, closedPoll{reason: reason, poll: poll.Clone()})

	s.logger.Info("poll closed",
		zap.String("poll_id", pollID),
		zap.String("reason", reason),
		zap.Int("answers", len(poll.Answers)),
		zap.Int("votes", poll.TotalVotes()),
	)
	return true
}

func (s *Session) allAnsweredLocked() bool {
	if s.currentPoll == nil || !s.currentPoll.IsActive || len(s.participants) == 0 {
		return false
	}
	for _, p := range s.participants {
		if !p.HasAnswered {
			return false
		}
	}
	return true
}

func (s *Session) timeLimit(seconds int) time.Duration {
	if seconds <= 0 {
		return s.cfg.DefaultTimeLimit
	}
	// Compare in seconds: huge values would overflow time.Duration.
	if int64(seconds) > int64(s.cfg.MaxTimeLimit/time.Second) {
		return s.cfg.MaxTimeLimit
	}
	return time.Duration(seconds) * time.Second
}

func (s *Session) historyLocked() []models.Poll {
	out := make([]models.Poll, len(s.history))
	for i := range s.history {
		out[i] = s.history[i].Clone()
	}
	return out
}
