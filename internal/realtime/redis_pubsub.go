package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// ChannelPrefix prefixes the per-session Redis channel.
	ChannelPrefix = "livepoll:"
	publishTTL    = 5 * time.Second
)

// ErrMirrorFull is returned when the publish queue is saturated; the event is dropped.
var ErrMirrorFull = errors.New("mirror queue full")

// redisPayload is the message published to Redis for external observers.
type redisPayload struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	At    int64           `json:"at"`
}

type mirrorEvent struct {
	channel string
	body    []byte
}

// RedisPubSub implements EventPublisher using Redis pub/sub. Publishing is queued and
// drained by Run so the hub never waits on the network.
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger
	queue  chan mirrorEvent
}

// NewRedisPubSub creates a Redis pub/sub mirror for session events.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger, buffer int) *RedisPubSub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if buffer <= 0 {
		buffer = 1024
	}
	return &RedisPubSub{client: client, logger: logger, queue: make(chan mirrorEvent, buffer)}
}

// Channel returns the Redis channel name for a session.
func Channel(sessionKey string) string {
	return ChannelPrefix + sessionKey
}

// PublishSessionEvent queues an event for the session's Redis channel.
func (r *RedisPubSub) PublishSessionEvent(sessionKey string, event string, payload []byte) error {
	body, err := json.Marshal(redisPayload{Event: event, Data: payload, At: time.Now().Unix()})
	if err != nil {
		return err
	}
	select {
	case r.queue <- mirrorEvent{channel: Channel(sessionKey), body: body}:
		return nil
	default:
		return ErrMirrorFull
	}
}

// Run publishes queued events until ctx is done.
func (r *RedisPubSub) Run(ctx context.Context) {
	r.logger.Info("event mirror started")
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("event mirror stopping")
			return
		case ev := <-r.queue:
			pubCtx, cancel := context.WithTimeout(ctx, publishTTL)
			if err := r.client.Publish(pubCtx, ev.channel, ev.body).Err(); err != nil {
				r.logger.Warn("redis publish failed", zap.String("channel", ev.channel), zap.Error(err))
			}
			cancel()
		}
	}
}
