package repository

import (
	"context"
	"time"

	"github.com/ayo6706/solar-ledger/internal/models"
	"github.com/google/uuid"
)

// Querier is the data access surface used by services. It is implemented by
// *Queries for Postgres and by memstore for tests and local runs.
type Querier interface {
	CreateAccount(ctx context.Context, arg CreateAccountParams) (models.Account, error)
	GetAccount(ctx context.Context, id uuid.UUID) (models.Account, error)
	GetAccountForUpdate(ctx context.Context, id uuid.UUID) (models.Account, error)
	GetAccountByReferralCode(ctx context.Context, code string) (models.Account, error)
	UpdateAccountBalance(ctx context.Context, arg UpdateAccountBalanceParams) (int64, error)
	IncrementReferralStats(ctx context.Context, arg IncrementReferralStatsParams) (int64, error)
	ListBalanceDrift(ctx context.Context) ([]models.BalanceDrift, error)

	InsertLedgerEntry(ctx context.Context, arg InsertLedgerEntryParams) (models.LedgerEntry, error)
	ListLedgerEntriesByAccount(ctx context.Context, arg ListByAccountParams) ([]models.LedgerEntry, error)
	ListLedgerEntries(ctx context.Context, arg ListPageParams) ([]models.LedgerEntry, error)

	InsertDepositClaim(ctx context.Context, arg InsertDepositClaimParams) (models.DepositClaim, error)
	GetDepositClaim(ctx context.Context, id uuid.UUID) (models.DepositClaim, error)
	GetDepositClaimForUpdate(ctx context.Context, id uuid.UUID) (models.DepositClaim, error)
	ResolveDepositClaim(ctx context.Context, arg ResolveParams) (int64, error)
	MarkDepositClaimsConfirmed(ctx context.Context, externalReference string) (int64, error)
	ListDepositClaimsByAccount(ctx context.Context, arg ListByAccountParams) ([]models.DepositClaim, error)
	ListDepositClaimsByStatus(ctx context.Context, arg ListByStatusParams) ([]models.DepositClaim, error)

	InsertWithdrawalRequest(ctx context.Context, arg InsertWithdrawalRequestParams) (models.WithdrawalRequest, error)
	GetWithdrawalRequest(ctx context.Context, id uuid.UUID) (models.WithdrawalRequest, error)
	GetWithdrawalRequestForUpdate(ctx context.Context, id uuid.UUID) (models.WithdrawalRequest, error)
	ResolveWithdrawalRequest(ctx context.Context, arg ResolveParams) (int64, error)
	ListWithdrawalRequestsByAccount(ctx context.Context, arg ListByAccountParams) ([]models.WithdrawalRequest, error)
	ListWithdrawalRequestsByStatus(ctx context.Context, arg ListByStatusParams) ([]models.WithdrawalRequest, error)

	InsertPurchaseRecord(ctx context.Context, arg InsertPurchaseRecordParams) (models.PurchaseRecord, error)
	CountPurchases(ctx context.Context, arg CountPurchasesParams) (int64, error)
	ListPurchaseRecordsByAccount(ctx context.Context, arg ListByAccountParams) ([]models.PurchaseRecord, error)

	InsertAuditLog(ctx context.Context, arg InsertAuditLogParams) (int64, error)
	ListAuditLogByEntity(ctx context.Context, entityID uuid.UUID) ([]models.AuditRecord, error)

	InsertOutboxEvent(ctx context.Context, arg InsertOutboxEventParams) error
	ClaimOutboxEvents(ctx context.Context, limit int32) ([]models.OutboxEvent, error)
	MarkOutboxEventPublished(ctx context.Context, id uuid.UUID) (int64, error)
	MarkOutboxEventFailed(ctx context.Context, arg MarkOutboxEventFailedParams) (int64, error)

	GetIdempotencyKey(ctx context.Context, key string) (IdempotencyKey, error)
	ReserveIdempotencyKey(ctx context.Context, arg ReserveIdempotencyKeyParams) (IdempotencyKey, error)
	FinalizeIdempotencyKey(ctx context.Context, arg FinalizeIdempotencyKeyParams) (IdempotencyKey, error)
}

type CreateAccountParams struct {
	ID           uuid.UUID
	Name         string
	Phone        string
	ReferralCode string
	ReferredBy   *uuid.UUID
}

type UpdateAccountBalanceParams struct {
	ID      uuid.UUID
	Balance int64
}

type IncrementReferralStatsParams struct {
	ID     uuid.UUID
	Amount int64
}

type InsertLedgerEntryParams struct {
	ID              uuid.UUID
	AccountID       uuid.UUID
	Kind            string
	Amount          int64
	BalanceAfter    int64
	RelatedRecordID uuid.UUID
}

type ListByAccountParams struct {
	AccountID uuid.UUID
	Limit     int32
	Offset    int32
}

type ListPageParams struct {
	Limit  int32
	Offset int32
}

type ListByStatusParams struct {
	Status string
	Limit  int32
	Offset int32
}

type InsertDepositClaimParams struct {
	ID                uuid.UUID
	AccountID         uuid.UUID
	Amount            int64
	Method            string
	ExternalReference string
}

// ResolveParams moves a pending deposit claim or withdrawal request to a
// terminal status. The update only applies while the row is still pending.
type ResolveParams struct {
	ID           uuid.UUID
	Status       string
	OperatorNote string
	ResolvedBy   *uuid.UUID
	ResolvedAt   time.Time
}

type InsertWithdrawalRequestParams struct {
	ID              uuid.UUID
	AccountID       uuid.UUID
	RequestedAmount int64
	FeeAmount       int64
	NetAmount       int64
}

type InsertPurchaseRecordParams struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	ProductID int64
	Amount    int64
}

type CountPurchasesParams struct {
	AccountID uuid.UUID
	ProductID int64
}

type InsertAuditLogParams struct {
	EntityType string
	EntityID   uuid.UUID
	ActorID    *uuid.UUID
	Action     string
	PrevState  *string
	NextState  *string
	Metadata   []byte
}

type InsertOutboxEventParams struct {
	ID          uuid.UUID
	EventType   string
	AggregateID uuid.UUID
	AccountID   uuid.UUID
	Payload     []byte
}

type MarkOutboxEventFailedParams struct {
	ID        uuid.UUID
	LastError string
}

type IdempotencyKey struct {
	IdempotencyKey string
	RequestHash    string
	Method         string
	Path           string
	ResponseStatus int32
	ResponseBody   []byte
	ContentType    string
	InProgress     bool
	CreatedAt      time.Time
}

type ReserveIdempotencyKeyParams struct {
	IdempotencyKey string
	RequestHash    string
	Method         string
	Path           string
}

type FinalizeIdempotencyKeyParams struct {
	ResponseStatus int32
	ResponseBody   []byte
	ContentType    string
	IdempotencyKey string
	RequestHash    string
}
