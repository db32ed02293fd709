package events

import (
	"context"

	"go.uber.org/zap"
)

// LogPublisher writes events to the logger. It is the default when no broker
// is configured.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.L()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, event Event) error {
	p.logger.Info("event published",
		zap.String("event_id", event.ID.String()),
		zap.String("event_type", string(event.Type)),
		zap.String("aggregate_id", event.AggregateID.String()),
		zap.String("account_id", event.AccountID.String()),
		zap.ByteString("payload", event.Payload),
	)
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
