package repository

import (
	"context"

	"github.com/ayo6706/solar-ledger/internal/models"
	"github.com/google/uuid"
)

const insertOutboxEvent = `
INSERT INTO outbox_events (id, event_type, aggregate_id, account_id, payload)
VALUES ($1, $2, $3, $4, $5)
`

func (q *Queries) InsertOutboxEvent(ctx context.Context, arg InsertOutboxEventParams) error {
	_, err := q.db.Exec(ctx, insertOutboxEvent, arg.ID, arg.EventType, arg.AggregateID, arg.AccountID, arg.Payload)
	return err
}

// Rows locked by another relay are skipped so concurrent relays never publish
// the same event at the same time.
const claimOutboxEvents = `
SELECT id, event_type, aggregate_id, account_id, payload, attempts, COALESCE(last_error, ''), created_at, published_at
FROM outbox_events
WHERE published_at IS NULL
ORDER BY seq
LIMIT $1
FOR UPDATE SKIP LOCKED
`

func (q *Queries) ClaimOutboxEvents(ctx context.Context, limit int32) ([]models.OutboxEvent, error) {
	rows, err := q.db.Query(ctx, claimOutboxEvents, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []models.OutboxEvent
	for rows.Next() {
		var e models.OutboxEvent
		if err := rows.Scan(&e.ID, &e.EventType, &e.AggregateID, &e.AccountID, &e.Payload, &e.Attempts, &e.LastError, &e.CreatedAt, &e.PublishedAt); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

const markOutboxEventPublished = `
UPDATE outbox_events
SET published_at = NOW(), attempts = attempts + 1, last_error = NULL
WHERE id = $1 AND published_at IS NULL
`

func (q *Queries) MarkOutboxEventPublished(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, markOutboxEventPublished, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const markOutboxEventFailed = `
UPDATE outbox_events
SET attempts = attempts + 1, last_error = $2
WHERE id = $1 AND published_at IS NULL
`

func (q *Queries) MarkOutboxEventFailed(ctx context.Context, arg MarkOutboxEventFailedParams) (int64, error) {
	tag, err := q.db.Exec(ctx, markOutboxEventFailed, arg.ID, arg.LastError)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
