package realtime

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aura-webinar/livepoll/internal/models"
	"github.com/aura-webinar/livepoll/internal/session"
)

// Inbound event names.
const (
	EventJoinSession     = "join-session"
	EventCreatePoll      = "create-poll"
	EventSubmitAnswer    = "submit-answer"
	EventSendMessage     = "send-message"
	EventKickParticipant = "kick-participant"
	EventGetPollHistory  = "get-poll-history"

	// EventRequestRejected is sent only to the connection whose command was refused.
	EventRequestRejected = "request-rejected"
)

var errAlreadyJoined = errors.New("connection already joined a session")

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ClientConfig sizes the per-connection buffers and filters upgrade origins.
type ClientConfig struct {
	SendBuffer      int
	MaxMessageBytes int64
	CheckOrigin     func(r *http.Request) bool // nil allows all origins
}

// Client represents a single WebSocket connection. Its id is the connection
// identity used by the session for presenter and participant records.
type Client struct {
	ID         string
	SessionKey string
	Role       models.Role
	hub        *Hub
	registry   *session.Registry
	sess       *session.Session
	conn       *websocket.Conn
	send       chan WSMessage
	done       chan struct{}
	cfg        ClientConfig
	logger     *zap.Logger
}

type joinRequest struct {
	SessionKey string `json:"session_key"`
	Role       string `json:"role"`
	Name       string `json:"name"`
}

type answerRequest struct {
	OptionID string `json:"option_id"`
}

type messageRequest struct {
	Text string `json:"text"`
}

type kickRequest struct {
	ParticipantID string `json:"participant_id"`
}

type rejectedPayload struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// ServeWs handles the WebSocket upgrade and runs the client loop.
func ServeWs(hub *Hub, registry *session.Registry, cfg ClientConfig, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 256
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = 65536
	}
	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin,
	}
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:       uuid.New().String(),
			hub:      hub,
			registry: registry,
			conn:     conn,
			send:     make(chan WSMessage, cfg.SendBuffer),
			done:     make(chan struct{}),
			cfg:      cfg,
			logger:   logger,
		}
		go client.writePump()
		client.readPump()
	}
}

// enqueue never blocks; false means the client's buffer is full.
func (c *Client) enqueue(msg WSMessage) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) readPump() {
	defer func() {
		close(c.done)
		if c.sess != nil {
			c.hub.Unregister(c)
			c.sess.Leave(c.ID)
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read failed", zap.String("client_id", c.ID), zap.Error(err))
			}
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg WSMessage) {
	if msg.Event == EventJoinSession {
		c.handleJoin(msg.Data)
		return
	}
	if c.sess == nil {
		c.reject(msg.Event, session.ErrNotMember)
		return
	}

	switch msg.Event {
	case EventCreatePoll:
		var req session.PollRequest
		if err := decode(msg.Data, &req); err != nil {
			c.reject(msg.Event, err)
			return
		}
		if _, err := c.sess.CreatePoll(c.ID, req); err != nil && !errors.Is(err, session.ErrPollInProgress) {
			c.reject(msg.Event, err)
		}
	case EventSubmitAnswer:
		var req answerRequest
		if err := decode(msg.Data, &req); err != nil {
			return
		}
		if err := c.sess.SubmitAnswer(c.ID, req.OptionID); err != nil {
			c.logger.Debug("answer discarded", zap.String("client_id", c.ID), zap.Error(err))
		}
	case EventSendMessage:
		var req messageRequest
		if err := decode(msg.Data, &req); err != nil {
			return
		}
		_, _ = c.sess.PostMessage(c.ID, req.Text)
	case EventKickParticipant:
		var req kickRequest
		if err := decode(msg.Data, &req); err != nil {
			return
		}
		if err := c.sess.Kick(c.ID, req.ParticipantID); err != nil {
			c.logger.Debug("kick ignored", zap.String("client_id", c.ID), zap.Error(err))
		}
	case EventGetPollHistory:
		if _, err := c.sess.RequestHistory(c.ID); err != nil {
			c.reject(msg.Event, err)
		}
	default:
		// ignore
	}
}

func (c *Client) handleJoin(data json.RawMessage) {
	if c.sess != nil {
		c.reject(EventJoinSession, errAlreadyJoined)
		return
	}
	var req joinRequest
	if err := decode(data, &req); err != nil {
		c.reject(EventJoinSession, err)
		return
	}
	role := models.Role(req.Role)
	if !role.Valid() {
		c.reject(EventJoinSession, session.ErrInvalidRole)
		return
	}
	if err := session.ValidateKey(req.SessionKey); err != nil {
		c.reject(EventJoinSession, err)
		return
	}

	sess := c.registry.GetOrCreate(req.SessionKey)
	c.SessionKey = sess.Key()
	c.Role = role
	// Registering under the session lock makes the snapshot the first event delivered.
	if _, err := sess.JoinAttached(c.ID, role, req.Name, func() { c.hub.Register(c) }); err != nil {
		c.reject(EventJoinSession, err)
		return
	}
	c.sess = sess
}

// reject answers the requester only. Before join the queue is private to this
// connection; afterwards it goes through the hub, which drops it if evicted.
func (c *Client) reject(action string, err error) {
	payload := rejectedPayload{Action: action, Reason: err.Error()}
	if c.sess != nil {
		c.hub.SendToClient(c.SessionKey, c.ID, EventRequestRejected, payload)
		return
	}
	data, _ := json.Marshal(payload)
	c.enqueue(WSMessage{Event: EventRequestRejected, Data: data})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
