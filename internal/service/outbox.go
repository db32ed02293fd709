package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ayo6706/solar-ledger/internal/events"
	"github.com/ayo6706/solar-ledger/internal/observability"
	"github.com/ayo6706/solar-ledger/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxOutboxErrorLen = 512

// enqueueEvent stores an event in the outbox within the caller's transaction,
// so it is published if and only if the transition commits.
func enqueueEvent(ctx context.Context, qtx repository.Querier, typ events.Type, aggregateID, accountID uuid.UUID, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", typ, err)
	}
	if err := qtx.InsertOutboxEvent(ctx, repository.InsertOutboxEventParams{
		ID:          uuid.New(),
		EventType:   string(typ),
		AggregateID: aggregateID,
		AccountID:   accountID,
		Payload:     body,
	}); err != nil {
		return fmt.Errorf("enqueue %s event: %w", typ, err)
	}
	return nil
}

// OutboxService relays committed outbox events to a Publisher.
type OutboxService struct {
	store     QueryStore
	publisher events.Publisher
}

func NewOutboxService(store QueryStore, publisher events.Publisher) *OutboxService {
	return &OutboxService{store: store, publisher: publisher}
}

// Relay publishes up to batchSize pending events and returns how many were
// delivered. Events are claimed with SKIP LOCKED, so several relays can run at
// once. After a failed publish the remaining events of that account wait for
// the next run to keep per-account order.
func (s *OutboxService) Relay(ctx context.Context, batchSize int32) (int, error) {
	published := 0
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		pending, err := qtx.ClaimOutboxEvents(ctx, batchSize)
		if err != nil {
			return fmt.Errorf("claim outbox events: %w", err)
		}

		blocked := make(map[uuid.UUID]struct{})
		for _, row := range pending {
			if err := ctx.Err(); err != nil {
				return nil
			}
			if _, ok := blocked[row.AccountID]; ok {
				continue
			}

			ev := events.Event{
				ID:          row.ID,
				Type:        events.Type(row.EventType),
				AggregateID: row.AggregateID,
				AccountID:   row.AccountID,
				OccurredAt:  row.CreatedAt,
				Payload:     row.Payload,
			}
			if pubErr := s.publisher.Publish(ctx, ev); pubErr != nil {
				blocked[row.AccountID] = struct{}{}
				observability.IncrementOutboxEvent("failed")
				zap.L().Warn("outbox publish failed",
					zap.String("event_id", row.ID.String()),
					zap.String("event_type", row.EventType),
					zap.Int32("attempts", row.Attempts+1),
					zap.Error(pubErr),
				)
				msg := pubErr.Error()
				if len(msg) > maxOutboxErrorLen {
					msg = msg[:maxOutboxErrorLen]
				}
				if _, err := qtx.MarkOutboxEventFailed(ctx, repository.MarkOutboxEventFailedParams{ID: row.ID, LastError: msg}); err != nil {
					return fmt.Errorf("mark outbox event failed: %w", err)
				}
				continue
			}

			rows, err := qtx.MarkOutboxEventPublished(ctx, row.ID)
			if err != nil {
				return fmt.Errorf("mark outbox event published: %w", err)
			}
			if err := requireExactlyOne(rows, "mark outbox event published"); err != nil {
				return err
			}
			observability.IncrementOutboxEvent("published")
			published++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return published, nil
}
