package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Account struct {
	ID               uuid.UUID  `json:"id"`
	Name             string     `json:"name"`
	Phone            string     `json:"phone"`
	Balance          int64      `json:"balance"`
	ReferralCode     string     `json:"referral_code"`
	ReferredBy       *uuid.UUID `json:"referred_by,omitempty"`
	ReferralEarnings int64      `json:"referral_earnings"`
	ReferralCount    int64      `json:"referral_count"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

type DepositClaim struct {
	ID                uuid.UUID  `json:"id"`
	AccountID         uuid.UUID  `json:"account_id"`
	Amount            int64      `json:"amount"`
	Method            string     `json:"method"`
	ExternalReference string     `json:"external_reference"`
	Status            string     `json:"status"`
	ExternalConfirmed bool       `json:"external_confirmed"`
	OperatorNote      string     `json:"operator_note,omitempty"`
	ResolvedBy        *uuid.UUID `json:"resolved_by,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`
}

type WithdrawalRequest struct {
	ID              uuid.UUID  `json:"id"`
	AccountID       uuid.UUID  `json:"account_id"`
	RequestedAmount int64      `json:"requested_amount"`
	FeeAmount       int64      `json:"fee_amount"`
	NetAmount       int64      `json:"net_amount"`
	Status          string     `json:"status"`
	OperatorNote    string     `json:"operator_note,omitempty"`
	ResolvedBy      *uuid.UUID `json:"resolved_by,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
}

type PurchaseRecord struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
	ProductID int64     `json:"product_id"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// LedgerEntry is one balance-affecting event. Amount is signed: positive for
// credits, negative for debits.
type LedgerEntry struct {
	ID              uuid.UUID `json:"id"`
	AccountID       uuid.UUID `json:"account_id"`
	Kind            string    `json:"kind"`
	Amount          int64     `json:"amount"`
	BalanceAfter    int64     `json:"balance_after"`
	RelatedRecordID uuid.UUID `json:"related_record_id"`
	CreatedAt       time.Time `json:"created_at"`
}

type AuditRecord struct {
	ID         int64           `json:"id"`
	EntityType string          `json:"entity_type"`
	EntityID   uuid.UUID       `json:"entity_id"`
	ActorID    *uuid.UUID      `json:"actor_id,omitempty"`
	Action     string          `json:"action"`
	PrevState  string          `json:"prev_state,omitempty"`
	NextState  string          `json:"next_state,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

type OutboxEvent struct {
	ID          uuid.UUID       `json:"id"`
	EventType   string          `json:"event_type"`
	AggregateID uuid.UUID       `json:"aggregate_id"`
	AccountID   uuid.UUID       `json:"account_id"`
	Payload     json.RawMessage `json:"payload"`
	Attempts    int32           `json:"attempts"`
	LastError   string          `json:"last_error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	PublishedAt *time.Time      `json:"published_at,omitempty"`
}

// BalanceDrift reports an account whose stored balance disagrees with the sum
// of its ledger entries.
type BalanceDrift struct {
	AccountID uuid.UUID `json:"account_id"`
	Balance   int64     `json:"balance"`
	LedgerSum int64     `json:"ledger_sum"`
}
