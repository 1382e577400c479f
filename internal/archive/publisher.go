package archive

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aura-webinar/livepoll/internal/models"
	"github.com/aura-webinar/livepoll/pkg/queue"
)

const enqueueTimeout = 5 * time.Second

// JobQueue is the subset of queue.Queue used to hand off closed polls.
type JobQueue interface {
	Enqueue(ctx context.Context, t queue.JobType, payload interface{}) error
}

// Publisher turns closed polls into archive jobs. Its PollClosed method matches
// session.ClosedPollHandler.
type Publisher struct {
	queue  JobQueue
	logger *zap.Logger
}

// NewPublisher creates a closed-poll publisher.
func NewPublisher(q JobQueue, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{queue: q, logger: logger}
}

// PollClosed enqueues an archive job; failures are logged and the poll is not archived.
func (p *Publisher) PollClosed(sessionKey, reason string, poll models.Poll) {
	ctx, cancel := context.WithTimeout(context.Background(), enqueueTimeout)
	defer cancel()
	payload := models.ArchivedPoll{SessionKey: sessionKey, CloseReason: reason, Poll: poll}
	if err := p.queue.Enqueue(ctx, queue.JobTypePollArchive, payload); err != nil {
		p.logger.Error("enqueue poll archive failed",
			zap.String("session_key", sessionKey),
			zap.String("poll_id", poll.ID),
			zap.Error(err),
		)
	}
}
