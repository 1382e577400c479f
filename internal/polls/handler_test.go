package polls

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/livepoll/internal/models"
	"github.com/aura-webinar/livepoll/internal/session"
)

type nopBroadcaster struct{}

func (nopBroadcaster) BroadcastToSession(string, string, interface{})               {}
func (nopBroadcaster) BroadcastToSessionExcept(string, string, string, interface{}) {}
func (nopBroadcaster) SendToClient(string, string, string, interface{})             {}
func (nopBroadcaster) Evict(string, string)                                         {}

type fixedCount int

func (n fixedCount) ConnectionCount(string) int { return int(n) }

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func setup(t *testing.T) (*gin.Engine, *session.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	registry := session.NewRegistry(session.DefaultConfig(), nopBroadcaster{}, nil)
	h := NewHandler(registry, fixedCount(3))

	r := gin.New()
	r.GET("/sessions", h.List)
	r.GET("/sessions/:key", h.Get)
	return r, registry
}

func get(t *testing.T, r *gin.Engine, path string) (int, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	var body envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestGet_Summary(t *testing.T) {
	r, registry := setup(t)
	sess := registry.GetOrCreate("demo")
	_, err := sess.Join("host", models.RolePresenter, "Host")
	require.NoError(t, err)
	_, err = sess.Join("p1", models.RoleParticipant, "Ana")
	require.NoError(t, err)
	poll, err := sess.CreatePoll("host", session.PollRequest{
		Question: "Ready?",
		Options:  []session.OptionRequest{{Text: "Yes"}, {Text: "No"}},
	})
	require.NoError(t, err)
	require.NoError(t, sess.SubmitAnswer("p1", poll.Options[0].ID))

	code, body := get(t, r, "/sessions/demo")
	require.Equal(t, http.StatusOK, code)
	assert.True(t, body.Success)

	var sum models.SessionSummary
	require.NoError(t, json.Unmarshal(body.Data, &sum))
	assert.Equal(t, "demo", sum.SessionKey)
	assert.True(t, sum.PresenterConnected)
	assert.Equal(t, 1, sum.ParticipantCount)
	assert.Equal(t, 1, sum.CompletedPolls)
	assert.Equal(t, 3, sum.Connections)
	require.NotNil(t, sum.CurrentPoll)
	assert.Equal(t, 1, sum.CurrentPoll.Options[0].Votes)
	assert.NotContains(t, string(body.Data), `"answers"`)
}

func TestGet_UnknownSessionIsNotCreated(t *testing.T) {
	r, registry := setup(t)

	code, body := get(t, r, "/sessions/nope")
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, body.Success)
	assert.Equal(t, "session not found", body.Error)
	assert.Zero(t, registry.Len())

	code, _ = get(t, r, "/sessions/"+strings.Repeat("k", session.MaxKeyLen+1))
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestList(t *testing.T) {
	r, registry := setup(t)
	registry.GetOrCreate("b")
	registry.GetOrCreate("a")

	code, body := get(t, r, "/sessions")
	require.Equal(t, http.StatusOK, code)
	var sums []models.SessionSummary
	require.NoError(t, json.Unmarshal(body.Data, &sums))
	require.Len(t, sums, 2)
	assert.Equal(t, "a", sums[0].SessionKey)
	assert.Equal(t, "b", sums[1].SessionKey)
}
