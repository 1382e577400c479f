package realtime

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/livepoll/internal/models"
	"github.com/aura-webinar/livepoll/internal/session"
)

type wsServer struct {
	url      string
	hub      *Hub
	registry *session.Registry
}

func newWSServer(t *testing.T) *wsServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := NewHub(nil, nil)
	registry := session.NewRegistry(session.DefaultConfig(), hub, nil)

	router := gin.New()
	router.GET("/ws", ServeWs(hub, registry, ClientConfig{SendBuffer: 64}, nil))
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &wsServer{
		url:      "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		hub:      hub,
		registry: registry,
	}
}

func (s *wsServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(s.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data interface{}) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(WSMessage{Event: event, Data: raw}))
}

// expect reads until event arrives and decodes its data into v (if non-nil).
func expect(t *testing.T, conn *websocket.Conn, event string, v interface{}) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var msg WSMessage
		require.NoError(t, conn.ReadJSON(&msg), "waiting for %s", event)
		if msg.Event != event {
			continue
		}
		if v != nil {
			require.NoError(t, json.Unmarshal(msg.Data, v))
		}
		return
	}
}

func join(t *testing.T, conn *websocket.Conn, key string, role models.Role, name string) models.Snapshot {
	t.Helper()
	send(t, conn, EventJoinSession, joinRequest{SessionKey: key, Role: string(role), Name: name})
	var snap models.Snapshot
	expect(t, conn, session.EventSessionSnapshot, &snap)
	return snap
}

func TestServeWs_PollRoundTrip(t *testing.T) {
	s := newWSServer(t)
	presenter, participant := s.dial(t), s.dial(t)

	snap := join(t, presenter, "demo", models.RolePresenter, "Host")
	assert.Equal(t, models.RolePresenter, snap.Role)
	snap = join(t, participant, "demo", models.RoleParticipant, "Ana")
	require.Len(t, snap.Participants, 1)
	expect(t, presenter, session.EventParticipantListChanged, nil)

	send(t, presenter, EventCreatePoll, session.PollRequest{
		Question:         "Tabs or spaces?",
		Options:          []session.OptionRequest{{Text: "Tabs"}, {Text: "Spaces"}},
		TimeLimitSeconds: 30,
	})
	var started models.Poll
	expect(t, participant, session.EventPollStarted, &started)
	assert.True(t, started.IsActive)
	require.Len(t, started.Options, 2)

	send(t, participant, EventSubmitAnswer, answerRequest{OptionID: started.Options[1].ID})

	var closed struct {
		Poll   models.Poll `json:"poll"`
		Reason string      `json:"reason"`
	}
	expect(t, presenter, session.EventPollClosed, &closed)
	assert.Equal(t, session.CloseReasonAllAnswered, closed.Reason)
	assert.Equal(t, 1, closed.Poll.Options[1].Votes)
	assert.Nil(t, closed.Poll.Answers)

	send(t, presenter, EventGetPollHistory, nil)
	var history []models.Poll
	expect(t, presenter, session.EventPollHistory, &history)
	require.Len(t, history, 1)
	assert.Equal(t, started.ID, history[0].ID)
}

func TestServeWs_RejectsBeforeJoin(t *testing.T) {
	s := newWSServer(t)
	conn := s.dial(t)

	send(t, conn, EventSendMessage, messageRequest{Text: "hi"})
	var rejected rejectedPayload
	expect(t, conn, EventRequestRejected, &rejected)
	assert.Equal(t, EventSendMessage, rejected.Action)
	assert.Equal(t, session.ErrNotMember.Error(), rejected.Reason)

	send(t, conn, EventJoinSession, joinRequest{Role: "judge"})
	expect(t, conn, EventRequestRejected, &rejected)
	assert.Equal(t, EventJoinSession, rejected.Action)
	assert.Equal(t, 0, s.registry.Len())
}

func TestServeWs_RejectsOverlongSessionKey(t *testing.T) {
	s := newWSServer(t)
	conn := s.dial(t)

	send(t, conn, EventJoinSession, joinRequest{
		SessionKey: strings.Repeat("k", session.MaxKeyLen+1),
		Role:       string(models.RoleParticipant),
		Name:       "Ana",
	})
	var rejected rejectedPayload
	expect(t, conn, EventRequestRejected, &rejected)
	assert.Equal(t, EventJoinSession, rejected.Action)
	assert.Equal(t, session.ErrKeyTooLong.Error(), rejected.Reason)
	assert.Zero(t, s.registry.Len())

	// The connection can still join with a valid key.
	snap := join(t, conn, "demo", models.RoleParticipant, "Ana")
	assert.Equal(t, "demo", snap.SessionKey)
	assert.Equal(t, 1, s.hub.ConnectionCount("demo"))
}

// The first frame a joiner reads is its snapshot, even while the session is busy.
func TestServeWs_SnapshotIsFirstEvent(t *testing.T) {
	s := newWSServer(t)
	presenter := s.dial(t)
	join(t, presenter, "demo", models.RolePresenter, "Host")

	for i := 0; i < 5; i++ {
		send(t, presenter, EventSendMessage, messageRequest{Text: "busy"})
		late := s.dial(t)
		send(t, late, EventJoinSession, joinRequest{SessionKey: "demo", Role: string(models.RoleParticipant), Name: "Late"})

		require.NoError(t, late.SetReadDeadline(time.Now().Add(2*time.Second)))
		var first WSMessage
		require.NoError(t, late.ReadJSON(&first))
		assert.Equal(t, session.EventSessionSnapshot, first.Event)
	}
}

func TestServeWs_ParticipantCannotCreatePoll(t *testing.T) {
	s := newWSServer(t)
	conn := s.dial(t)
	join(t, conn, "", models.RoleParticipant, "Ana")

	send(t, conn, EventCreatePoll, session.PollRequest{
		Question: "q",
		Options:  []session.OptionRequest{{Text: "a"}, {Text: "b"}},
	})
	var rejected rejectedPayload
	expect(t, conn, EventRequestRejected, &rejected)
	assert.Equal(t, session.ErrNotPresenter.Error(), rejected.Reason)

	sess, ok := s.registry.Lookup("default")
	require.True(t, ok)
	_, active := sess.CurrentPoll()
	assert.False(t, active)
}

func TestServeWs_KickClosesConnection(t *testing.T) {
	s := newWSServer(t)
	presenter, participant := s.dial(t), s.dial(t)
	join(t, presenter, "demo", models.RolePresenter, "Host")
	target := join(t, participant, "demo", models.RoleParticipant, "Bob")

	send(t, presenter, EventKickParticipant, kickRequest{ParticipantID: target.ConnectionID})

	var removed map[string]string
	expect(t, participant, session.EventRemoved, &removed)
	assert.Equal(t, "kicked", removed["reason"])

	// The server then closes the connection.
	require.NoError(t, participant.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := participant.ReadMessage(); err != nil {
			break
		}
	}

	require.Eventually(t, func() bool { return s.hub.ConnectionCount("demo") == 1 }, 2*time.Second, 10*time.Millisecond)
	sess, _ := s.registry.Lookup("demo")
	assert.Empty(t, sess.Participants())
}

func TestServeWs_DisconnectLeavesSession(t *testing.T) {
	s := newWSServer(t)
	presenter, participant := s.dial(t), s.dial(t)
	join(t, presenter, "demo", models.RolePresenter, "Host")
	join(t, participant, "demo", models.RoleParticipant, "Cleo")
	expect(t, presenter, session.EventParticipantListChanged, nil)

	require.NoError(t, participant.Close())

	var changed struct {
		Reason       string               `json:"reason"`
		Participants []models.Participant `json:"participants"`
	}
	expect(t, presenter, session.EventParticipantListChanged, &changed)
	assert.Equal(t, "left", changed.Reason)
	assert.Empty(t, changed.Participants)
}
