package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ayo6706/solar-ledger/internal/domain"
	"github.com/ayo6706/solar-ledger/internal/events"
	"github.com/ayo6706/solar-ledger/internal/models"
	"github.com/ayo6706/solar-ledger/internal/observability"
	"github.com/ayo6706/solar-ledger/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	entityDeposit      = "deposit_claim"
	maxReferenceLength = 64
)

// DepositService turns user payment claims into balance credits once an
// operator verifies them.
type DepositService struct {
	store     QueryStore
	ledger    *LedgerService
	audit     *AuditService
	minAmount int64
	now       func() time.Time
}

func NewDepositService(store QueryStore, ledger *LedgerService, minAmount int64) *DepositService {
	if minAmount <= 0 {
		minAmount = domain.DefaultMinDeposit
	}
	return &DepositService{
		store:     store,
		ledger:    ledger,
		audit:     NewAuditService(store),
		minAmount: minAmount,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the clock used for resolved_at.
func (s *DepositService) WithClock(now func() time.Time) *DepositService {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *DepositService) MinAmount() int64 {
	return s.minAmount
}

type SubmitDepositRequest struct {
	AccountID         uuid.UUID
	Amount            int64
	Method            string
	ExternalReference string
}

// ResolveRequest is an operator decision on a pending deposit claim or
// withdrawal request.
type ResolveRequest struct {
	ID           uuid.UUID
	OperatorNote string
	ActorID      *uuid.UUID
}

// Submit records a pending claim. Nothing is credited until Verify.
func (s *DepositService) Submit(ctx context.Context, req SubmitDepositRequest) (*models.DepositClaim, error) {
	if req.Amount < s.minAmount {
		return nil, fmt.Errorf("%w: minimum deposit is %s", domain.ErrBelowMinimum, domain.FormatKES(s.minAmount))
	}
	method := strings.ToLower(strings.TrimSpace(req.Method))
	if !domain.ValidMethod(method) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidMethod, req.Method)
	}
	reference := strings.TrimSpace(req.ExternalReference)
	if reference == "" || len(reference) > maxReferenceLength {
		return nil, fmt.Errorf("%w: external_reference must be 1-%d characters", domain.ErrInvalidInput, maxReferenceLength)
	}

	var claim models.DepositClaim
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		if _, err := qtx.GetAccount(ctx, req.AccountID); err != nil {
			return lookupError(err, "account")
		}

		created, err := qtx.InsertDepositClaim(ctx, repository.InsertDepositClaimParams{
			ID:                uuid.New(),
			AccountID:         req.AccountID,
			Amount:            req.Amount,
			Method:            method,
			ExternalReference: reference,
		})
		if err != nil {
			return fmt.Errorf("insert deposit claim: %w", err)
		}
		claim = created

		if err := s.audit.Write(ctx, qtx, entityDeposit, created.ID, &req.AccountID, "submitted", "", domain.DepositStatusPending, nil); err != nil {
			return err
		}
		return enqueueEvent(ctx, qtx, events.DepositSubmitted, created.ID, created.AccountID, created)
	})
	if err != nil {
		return nil, err
	}

	observability.IncrementWorkflowTransition("deposit", "submitted")
	return &claim, nil
}

// Verify credits the claimed amount and closes the claim. A claim that already
// left pending fails with domain.ErrInvalidState and is never credited twice.
func (s *DepositService) Verify(ctx context.Context, req ResolveRequest) (*models.DepositClaim, error) {
	return s.resolve(ctx, req, domain.DepositStatusVerified, events.DepositVerified)
}

// Reject closes the claim without touching the balance.
func (s *DepositService) Reject(ctx context.Context, req ResolveRequest) (*models.DepositClaim, error) {
	return s.resolve(ctx, req, domain.DepositStatusRejected, events.DepositRejected)
}

func (s *DepositService) resolve(ctx context.Context, req ResolveRequest, next string, eventType events.Type) (*models.DepositClaim, error) {
	var claim models.DepositClaim
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		current, err := qtx.GetDepositClaimForUpdate(ctx, req.ID)
		if err != nil {
			return lookupError(err, "deposit claim")
		}
		if err := depositTransitions.check("deposit claim", current.Status, next); err != nil {
			return err
		}

		resolvedAt := s.now()
		rows, err := qtx.ResolveDepositClaim(ctx, repository.ResolveParams{
			ID:           req.ID,
			Status:       next,
			OperatorNote: req.OperatorNote,
			ResolvedBy:   req.ActorID,
			ResolvedAt:   resolvedAt,
		})
		if err != nil {
			return fmt.Errorf("resolve deposit claim: %w", err)
		}
		if err := requireExactlyOne(rows, "resolve deposit claim"); err != nil {
			return err
		}

		if next == domain.DepositStatusVerified {
			if _, err := s.ledger.CreditTx(ctx, qtx, Mutation{
				AccountID:       current.AccountID,
				Amount:          current.Amount,
				Kind:            domain.KindDeposit,
				RelatedRecordID: current.ID,
			}); err != nil {
				return err
			}
		}

		if err := s.audit.Write(ctx, qtx, entityDeposit, current.ID, req.ActorID, next, current.Status, next, noteMetadata(req.OperatorNote)); err != nil {
			return err
		}

		claim = current
		claim.Status = next
		claim.OperatorNote = req.OperatorNote
		claim.ResolvedBy = req.ActorID
		claim.ResolvedAt = &resolvedAt
		return enqueueEvent(ctx, qtx, eventType, claim.ID, claim.AccountID, claim)
	})
	if err != nil {
		return nil, err
	}

	observability.IncrementWorkflowTransition("deposit", next)
	zap.L().Info("deposit claim resolved",
		zap.String("claim_id", claim.ID.String()),
		zap.String("status", next),
		zap.Int64("amount", claim.Amount),
	)
	return &claim, nil
}

// MarkExternallyConfirmed flags every claim carrying externalReference as
// confirmed by the payment provider. The flag is advisory for operators; it
// changes neither status nor balance.
func (s *DepositService) MarkExternallyConfirmed(ctx context.Context, externalReference string) (int64, error) {
	reference := strings.TrimSpace(externalReference)
	if reference == "" {
		return 0, fmt.Errorf("%w: external reference is required", domain.ErrInvalidInput)
	}
	rows, err := s.store.Queries().MarkDepositClaimsConfirmed(ctx, reference)
	if err != nil {
		return 0, fmt.Errorf("mark deposit claims confirmed: %w", err)
	}
	return rows, nil
}

func (s *DepositService) Get(ctx context.Context, id uuid.UUID) (*models.DepositClaim, error) {
	claim, err := s.store.Queries().GetDepositClaim(ctx, id)
	if err != nil {
		return nil, lookupError(err, "deposit claim")
	}
	return &claim, nil
}

// GetForAccount hides claims owned by other accounts behind domain.ErrNotFound.
func (s *DepositService) GetForAccount(ctx context.Context, accountID, id uuid.UUID) (*models.DepositClaim, error) {
	claim, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if claim.AccountID != accountID {
		return nil, fmt.Errorf("deposit claim: %w", domain.ErrNotFound)
	}
	return claim, nil
}

func (s *DepositService) ListByAccount(ctx context.Context, accountID uuid.UUID, page, pageSize int) ([]models.DepositClaim, error) {
	limit, offset := pageBounds(page, pageSize)
	return s.store.Queries().ListDepositClaimsByAccount(ctx, repository.ListByAccountParams{
		AccountID: accountID,
		Limit:     limit,
		Offset:    offset,
	})
}

// ListByStatus is the operator queue, oldest first.
func (s *DepositService) ListByStatus(ctx context.Context, status string, page, pageSize int) ([]models.DepositClaim, error) {
	status = normalizeState(status)
	if status == "" {
		status = domain.DepositStatusPending
	}
	if !depositTransitions.has(status) {
		return nil, fmt.Errorf("%w: unknown deposit status %q", domain.ErrInvalidInput, status)
	}
	limit, offset := pageBounds(page, pageSize)
	claims, err := s.store.Queries().ListDepositClaimsByStatus(ctx, repository.ListByStatusParams{
		Status: status,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, err
	}
	if status == domain.DepositStatusPending && page <= 1 {
		observability.SetPendingQueueSize("deposit", len(claims))
	}
	return claims, nil
}
