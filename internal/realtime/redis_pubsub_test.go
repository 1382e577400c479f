package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannel(t *testing.T) {
	assert.Equal(t, "livepoll:demo", Channel("demo"))
}

func TestRedisPubSub_QueuesWithoutBlocking(t *testing.T) {
	mirror := NewRedisPubSub(nil, nil, 1)

	require.NoError(t, mirror.PublishSessionEvent("demo", "poll-started", []byte(`{"id":"p"}`)))
	assert.ErrorIs(t, mirror.PublishSessionEvent("demo", "poll-closed", nil), ErrMirrorFull)

	ev := <-mirror.queue
	assert.Equal(t, "livepoll:demo", ev.channel)
	var body redisPayload
	require.NoError(t, json.Unmarshal(ev.body, &body))
	assert.Equal(t, "poll-started", body.Event)
	assert.JSONEq(t, `{"id":"p"}`, string(body.Data))
	assert.NotZero(t, body.At)
}
