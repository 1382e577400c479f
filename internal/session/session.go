package session

import (
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/aura-webinar/livepoll/internal/models"
)

const anonymousName = "Anonymous"

// Session is one polling room: a presenter slot, participants, the current poll,
// poll history and the chat log. All state is guarded by mu; every mutation,
// including the poll timer callback, runs under it.
type Session struct {
	key      string
	cfg      Config
	out      Broadcaster
	clock    clockwork.Clock
	logger   *zap.Logger
	registry *Registry

	mu           sync.Mutex
	presenter    *models.Presenter
	participants map[string]*models.Participant
	order        []string // participant ids in join order
	currentPoll  *models.Poll
	timer        clockwork.Timer
	history      []models.Poll
	messages     []models.Message
	pendingClose []closedPoll // handed to the closed-poll handler on unlock
}

type closedPoll struct {
	reason string
	poll   models.Poll
}

// newSession is called with r.mu held.
func newSession(key string, r *Registry) *Session {
	return &Session{
		key:          key,
		cfg:          r.cfg,
		out:          r.out,
		clock:        r.clock,
		logger:       r.logger.With(zap.String("session_key", key)),
		registry:     r,
		participants: make(map[string]*models.Participant),
	}
}

// Key returns the session key.
func (s *Session) Key() string {
	return s.key
}

// unlock releases mu and then runs the closed-poll handler for polls closed while locked.
func (s *Session) unlock() {
	pending := s.pendingClose
	s.pendingClose = nil
	s.mu.Unlock()
	if len(pending) == 0 {
		return
	}
	fn := s.registry.closedPollHandler()
	if fn == nil {
		return
	}
	for _, c := range pending {
		fn(s.key, c.reason, c.poll)
	}
}

// Join registers connID as presenter or participant and returns the snapshot sent to it.
func (s *Session) Join(connID string, role models.Role, name string) (models.Snapshot, error) {
	return s.JoinAttached(connID, role, name, nil)
}

// JoinAttached is Join with an attach hook that runs under the session lock before the
// snapshot is sent. The transport registers the connection there, so no session event
// can reach it ahead of its snapshot. attach is not called when the join is rejected.
func (s *Session) JoinAttached(connID string, role models.Role, name string, attach func()) (models.Snapshot, error) {
	if !role.Valid() {
		return models.Snapshot{}, ErrInvalidRole
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = anonymousName
	}

	s.mu.Lock()
	defer s.unlock()

	if attach != nil {
		attach()
	}
	now := s.clock.Now()
	switch role {
	case models.RolePresenter:
		s.removeParticipantLocked(connID)
		if prev := s.presenter; prev != nil && prev.ID != connID {
			s.out.SendToClient(s.key, prev.ID, EventPresenterReplaced, map[string]string{"name": name})
			s.logger.Info("presenter replaced", zap.String("previous", prev.ID), zap.String("connection_id", connID))
		}
		s.presenter = &models.Presenter{ID: connID, Name: name, JoinedAt: now}
	case models.RoleParticipant:
		if s.isPresenterLocked(connID) {
			s.presenter = nil
		}
		if p, ok := s.participants[connID]; ok {
			p.Name = name
		} else {
			s.participants[connID] = &models.Participant{ID: connID, Name: name, JoinedAt: now}
			s.order = append(s.order, connID)
		}
	}

	snap := s.snapshotLocked(connID, role)
	s.out.SendToClient(s.key, connID, EventSessionSnapshot, snap)
	s.out.BroadcastToSessionExcept(s.key, connID, EventParticipantListChanged, participantListPayload{
		Reason:       "joined",
		Name:         name,
		Role:         role,
		Participants: s.participantListLocked(),
	})
	s.logger.Info("member joined", zap.String("connection_id", connID), zap.String("role", string(role)), zap.String("name", name))
	return snap, nil
}

// Leave removes connID from the session. An in-flight poll keeps running, and the
// all-answered check is not re-run for the remaining participants.
func (s *Session) Leave(connID string) {
	s.mu.Lock()
	defer s.unlock()

	var (
		name string
		role models.Role
	)
	if s.isPresenterLocked(connID) {
		name, role = s.presenter.Name, models.RolePresenter
		s.presenter = nil
	} else if p, ok := s.participants[connID]; ok {
		name, role = p.Name, models.RoleParticipant
		s.removeParticipantLocked(connID)
	} else {
		return
	}

	s.out.BroadcastToSessionExcept(s.key, connID, EventParticipantListChanged, participantListPayload{
		Reason:       "left",
		Name:         name,
		Role:         role,
		Participants: s.participantListLocked(),
	})
	s.logger.Info("member left", zap.String("connection_id", connID), zap.String("role", string(role)))
}

// Kick removes a participant on behalf of the presenter. The target receives "removed"
// and its connection is terminated; if everyone left has answered, the poll closes.
func (s *Session) Kick(requesterID, targetID string) error {
	s.mu.Lock()
	defer s.unlock()

	if !s.isPresenterLocked(requesterID) {
		return ErrNotPresenter
	}
	p, ok := s.participants[targetID]
	if !ok {
		return ErrUnknownParticipant
	}
	s.removeParticipantLocked(targetID)

	s.out.SendToClient(s.key, targetID, EventRemoved, map[string]string{"reason": "kicked"})
	s.out.Evict(s.key, targetID)
	s.out.BroadcastToSessionExcept(s.key, targetID, EventParticipantListChanged, participantListPayload{
		Reason:       "kicked",
		Name:         p.Name,
		Role:         models.RoleParticipant,
		Participants: s.participantListLocked(),
	})
	s.logger.Info("participant kicked", zap.String("participant_id", targetID), zap.String("name", p.Name))

	if s.allAnsweredLocked() {
		s.closeLocked(s.currentPoll.ID, CloseReasonAllAnswered)
	}
	return nil
}

// Snapshot returns the state a connection would receive on join.
func (s *Session) Snapshot(connID string) models.Snapshot {
	s.mu.Lock()
	defer s.unlock()
	role := models.RoleParticipant
	if s.isPresenterLocked(connID) {
		role = models.RolePresenter
	}
	return s.snapshotLocked(connID, role)
}

// Participants returns the participant list in join order.
func (s *Session) Participants() []models.Participant {
	s.mu.Lock()
	defer s.unlock()
	return s.participantListLocked()
}

// CurrentPoll returns a copy of the current poll, if any.
func (s *Session) CurrentPoll() (models.Poll, bool) {
	s.mu.Lock()
	defer s.unlock()
	if s.currentPoll == nil {
		return models.Poll{}, false
	}
	return s.currentPoll.Clone(), true
}

// Summary returns the public HTTP view of the session. Connections is left for the caller.
func (s *Session) Summary() models.SessionSummary {
	s.mu.Lock()
	defer s.unlock()
	sum := models.SessionSummary{
		SessionKey:         s.key,
		PresenterConnected: s.presenter != nil,
		ParticipantCount:   len(s.participants),
		CompletedPolls:     len(s.history),
	}
	if s.currentPoll != nil {
		p := s.currentPoll.Public()
		sum.CurrentPoll = &p
	}
	return sum
}

func (s *Session) isPresenterLocked(connID string) bool {
	return s.presenter != nil && s.presenter.ID == connID
}

func (s *Session) memberLocked(connID string) (string, models.Role, bool) {
	if s.isPresenterLocked(connID) {
		return s.presenter.Name, models.RolePresenter, true
	}
	if p, ok := s.participants[connID]; ok {
		return p.Name, models.RoleParticipant, true
	}
	return "", "", false
}

func (s *Session) removeParticipantLocked(id string) bool {
	if _, ok := s.participants[id]; !ok {
		return false
	}
	delete(s.participants, id)
	for i, pid := range s.order {
		if pid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *Session) participantListLocked() []models.Participant {
	out := make([]models.Participant, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.participants[id])
	}
	return out
}

func (s *Session) snapshotLocked(connID string, role models.Role) models.Snapshot {
	snap := models.Snapshot{
		ConnectionID: connID,
		Role:         role,
		SessionKey:   s.key,
		Participants: s.participantListLocked(),
		Messages:     make([]models.Message, len(s.messages)),
	}
	copy(snap.Messages, s.messages)
	if s.presenter != nil {
		p := *s.presenter
		snap.Presenter = &p
	}
	if s.currentPoll != nil {
		p := s.currentPoll.Public()
		snap.CurrentPoll = &p
	}
	return snap
}
