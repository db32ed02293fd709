package service

import (
	"context"
	"fmt"

	"github.com/ayo6706/solar-ledger/internal/domain"
	"github.com/ayo6706/solar-ledger/internal/events"
	"github.com/ayo6706/solar-ledger/internal/models"
	"github.com/ayo6706/solar-ledger/internal/observability"
	"github.com/ayo6706/solar-ledger/internal/repository"
	"github.com/google/uuid"
)

// PurchaseService debits product purchases and enforces per-product caps.
type PurchaseService struct {
	store  QueryStore
	ledger *LedgerService
	limits domain.PurchaseLimits
}

func NewPurchaseService(store QueryStore, ledger *LedgerService, limits domain.PurchaseLimits) *PurchaseService {
	if limits == nil {
		limits = domain.PurchaseLimits{}
	}
	return &PurchaseService{store: store, ledger: ledger, limits: limits}
}

type PurchaseRequest struct {
	AccountID uuid.UUID
	ProductID int64
	Amount    int64
}

// TryPurchase checks the product cap, debits the amount and appends a purchase
// record. The account row lock is taken before counting, so concurrent
// purchases by one account cannot both pass the cap.
func (s *PurchaseService) TryPurchase(ctx context.Context, req PurchaseRequest) (*models.PurchaseRecord, error) {
	if req.ProductID <= 0 {
		return nil, fmt.Errorf("%w: product_id must be positive", domain.ErrInvalidInput)
	}
	if req.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	var record models.PurchaseRecord
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		if _, err := qtx.GetAccountForUpdate(ctx, req.AccountID); err != nil {
			return lookupError(err, "account")
		}

		if max := s.limits.Limit(req.ProductID); max != domain.Unlimited {
			count, err := qtx.CountPurchases(ctx, repository.CountPurchasesParams{
				AccountID: req.AccountID,
				ProductID: req.ProductID,
			})
			if err != nil {
				return fmt.Errorf("count purchases: %w", err)
			}
			if count >= max {
				return fmt.Errorf("%w: product %d allows %d per account", domain.ErrLimitReached, req.ProductID, max)
			}
		}

		recordID := uuid.New()
		if _, err := s.ledger.DebitTx(ctx, qtx, Mutation{
			AccountID:       req.AccountID,
			Amount:          req.Amount,
			Kind:            domain.KindPurchase,
			RelatedRecordID: recordID,
		}); err != nil {
			return err
		}

		created, err := qtx.InsertPurchaseRecord(ctx, repository.InsertPurchaseRecordParams{
			ID:        recordID,
			AccountID: req.AccountID,
			ProductID: req.ProductID,
			Amount:    req.Amount,
		})
		if err != nil {
			return fmt.Errorf("insert purchase record: %w", err)
		}
		record = created
		return enqueueEvent(ctx, qtx, events.PurchaseRecorded, created.ID, created.AccountID, created)
	})
	if err != nil {
		return nil, err
	}

	observability.IncrementWorkflowTransition("purchase", "recorded")
	return &record, nil
}

// Limit returns the cap for productID; domain.Unlimited means no cap.
func (s *PurchaseService) Limit(productID int64) int64 {
	return s.limits.Limit(productID)
}

func (s *PurchaseService) Count(ctx context.Context, accountID uuid.UUID, productID int64) (int64, error) {
	return s.store.Queries().CountPurchases(ctx, repository.CountPurchasesParams{
		AccountID: accountID,
		ProductID: productID,
	})
}

// Allowance is how many more times an account may buy a product.
type Allowance struct {
	ProductID int64 `json:"product_id"`
	Limit     int64 `json:"limit"`
	Count     int64 `json:"count"`
	Remaining int64 `json:"remaining"`
}

// Allowance reports the cap, the purchases made so far and what is left.
// Limit and Remaining are domain.Unlimited for uncapped products.
func (s *PurchaseService) Allowance(ctx context.Context, accountID uuid.UUID, productID int64) (*Allowance, error) {
	if productID <= 0 {
		return nil, fmt.Errorf("%w: product_id must be positive", domain.ErrInvalidInput)
	}
	count, err := s.Count(ctx, accountID, productID)
	if err != nil {
		return nil, fmt.Errorf("count purchases: %w", err)
	}
	a := &Allowance{
		ProductID: productID,
		Limit:     s.Limit(productID),
		Count:     count,
		Remaining: domain.Unlimited,
	}
	if a.Limit != domain.Unlimited {
		a.Remaining = max(a.Limit-count, 0)
	}
	return a, nil
}

func (s *PurchaseService) ListByAccount(ctx context.Context, accountID uuid.UUID, page, pageSize int) ([]models.PurchaseRecord, error) {
	limit, offset := pageBounds(page, pageSize)
	return s.store.Queries().ListPurchaseRecordsByAccount(ctx, repository.ListByAccountParams{
		AccountID: accountID,
		Limit:     limit,
		Offset:    offset,
	})
}
