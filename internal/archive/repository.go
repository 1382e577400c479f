package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/livepoll/internal/models"
)

// Repository persists closed polls for reporting. Sessions are never rebuilt from it.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an archive repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Save writes a closed poll and its options in one transaction. Saving the same poll
// twice overwrites the first copy, so retried jobs are harmless.
func (r *Repository) Save(ctx context.Context, a models.ArchivedPoll) error {
	pollID, err := uuid.Parse(a.Poll.ID)
	if err != nil {
		return fmt.Errorf("invalid poll id %q: %w", a.Poll.ID, err)
	}
	endedAt := time.Now()
	if a.Poll.EndedAt != nil {
		endedAt = *a.Poll.EndedAt
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const upsertPoll = `INSERT INTO archived_polls (id, session_key, question, time_limit, close_reason, answer_count, created_at, ended_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET close_reason = EXCLUDED.close_reason, answer_count = EXCLUDED.answer_count,
				ended_at = EXCLUDED.ended_at, archived_at = NOW()`
		if _, err := tx.Exec(ctx, upsertPoll, pollID, a.SessionKey, a.Poll.Question, a.Poll.TimeLimitSeconds,
			a.CloseReason, len(a.Poll.Answers), a.Poll.CreatedAt, endedAt); err != nil {
			return fmt.Errorf("upsert poll: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM archived_poll_options WHERE poll_id = $1`, pollID); err != nil {
			return fmt.Errorf("clear options: %w", err)
		}
		batch := &pgx.Batch{}
		for i, o := range a.Poll.Options {
			optID, err := uuid.Parse(o.ID)
			if err != nil {
				return fmt.Errorf("invalid option id %q: %w", o.ID, err)
			}
			batch.Queue(`INSERT INTO archived_poll_options (id, poll_id, position, text, is_correct, votes)
				VALUES ($1, $2, $3, $4, $5, $6)`, optID, pollID, i, o.Text, o.IsCorrect, o.Votes)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert options: %w", err)
		}
		return nil
	})
}
