// Package events defines the ledger's outbound domain events and the
// publishers that deliver them to a broker.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	AccountOpened       Type = "account.opened"
	DepositSubmitted    Type = "deposit.submitted"
	DepositVerified     Type = "deposit.verified"
	DepositRejected     Type = "deposit.rejected"
	WithdrawalSubmitted Type = "withdrawal.submitted"
	WithdrawalProcessed Type = "withdrawal.processed"
	WithdrawalRejected  Type = "withdrawal.rejected"
	PurchaseRecorded    Type = "purchase.recorded"
	ReferralCredited    Type = "referral.credited"
)

// Event is the envelope delivered to brokers. Payload carries the record that
// changed, serialized as JSON.
type Event struct {
	ID          uuid.UUID       `json:"id"`
	Type        Type            `json:"type"`
	AggregateID uuid.UUID       `json:"aggregate_id"`
	AccountID   uuid.UUID       `json:"account_id"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Payload     json.RawMessage `json:"payload"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}
