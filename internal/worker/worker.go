package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aura-webinar/livepoll/internal/models"
	"github.com/aura-webinar/livepoll/pkg/queue"
)

// PollStore persists archived polls.
type PollStore interface {
	Save(ctx context.Context, a models.ArchivedPoll) error
}

// JobSource is the subset of queue.Queue the processor consumes.
type JobSource interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// ArchiveProcessor processes poll archive jobs: decode the closed poll, write it to the store.
type ArchiveProcessor struct {
	store   PollStore
	queue   JobSource
	logger  *zap.Logger
	backoff time.Duration
}

// NewArchiveProcessor creates a poll archive processor.
func NewArchiveProcessor(store PollStore, q JobSource, logger *zap.Logger) *ArchiveProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveProcessor{store: store, queue: q, logger: logger, backoff: queue.RetryBackoff}
}

// Process executes one archive job.
func (p *ArchiveProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypePollArchive {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload models.ArchivedPoll
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if payload.Poll.ID == "" {
		return fmt.Errorf("archive job %s has no poll", job.ID)
	}
	if err := p.store.Save(ctx, payload); err != nil {
		return fmt.Errorf("save poll: %w", err)
	}

	p.logger.Info("poll archived",
		zap.String("poll_id", payload.Poll.ID),
		zap.String("session_key", payload.SessionKey),
		zap.String("close_reason", payload.CloseReason),
	)
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *ArchiveProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("archive worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *ArchiveProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
