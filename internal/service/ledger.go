package service

import (
	"context"
	"fmt"
	"math"

	"github.com/ayo6706/solar-ledger/internal/domain"
	"github.com/ayo6706/solar-ledger/internal/models"
	"github.com/ayo6706/solar-ledger/internal/observability"
	"github.com/ayo6706/solar-ledger/internal/repository"
	"github.com/google/uuid"
)

// Mutation describes one balance change and the record that caused it.
type Mutation struct {
	AccountID       uuid.UUID
	Amount          int64
	Kind            string
	RelatedRecordID uuid.UUID
}

// LedgerService is the only writer of account balances. Every change locks
// the account row, writes the new balance and appends exactly one ledger entry.
type LedgerService struct {
	store QueryStore
}

func NewLedgerService(store QueryStore) *LedgerService {
	return &LedgerService{store: store}
}

// Credit adds m.Amount to the account in its own transaction and returns the
// resulting balance.
func (s *LedgerService) Credit(ctx context.Context, m Mutation) (int64, error) {
	var balance int64
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		var err error
		balance, err = s.CreditTx(ctx, qtx, m)
		return err
	})
	return balance, err
}

// Debit subtracts m.Amount in its own transaction. It fails with
// domain.ErrInsufficientFunds when the balance is smaller than the amount.
func (s *LedgerService) Debit(ctx context.Context, m Mutation) (int64, error) {
	var balance int64
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		var err error
		balance, err = s.DebitTx(ctx, qtx, m)
		return err
	})
	return balance, err
}

// CreditTx is Credit joined to the caller's transaction.
func (s *LedgerService) CreditTx(ctx context.Context, qtx repository.Querier, m Mutation) (int64, error) {
	return s.apply(ctx, qtx, m, 1)
}

// DebitTx is Debit joined to the caller's transaction.
func (s *LedgerService) DebitTx(ctx context.Context, qtx repository.Querier, m Mutation) (int64, error) {
	return s.apply(ctx, qtx, m, -1)
}

func (s *LedgerService) apply(ctx context.Context, qtx repository.Querier, m Mutation, sign int64) (int64, error) {
	if m.Amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	if !domain.ValidKind(m.Kind) {
		return 0, fmt.Errorf("%w: unknown ledger kind %q", domain.ErrInvalidInput, m.Kind)
	}

	acc, err := qtx.GetAccountForUpdate(ctx, m.AccountID)
	if err != nil {
		return 0, lookupError(err, "account")
	}

	var next int64
	if sign > 0 {
		if acc.Balance > math.MaxInt64-m.Amount {
			return 0, fmt.Errorf("%w: balance overflow", domain.ErrInvalidAmount)
		}
		next = acc.Balance + m.Amount
	} else {
		if acc.Balance < m.Amount {
			return 0, fmt.Errorf("%w: balance %d, need %d", domain.ErrInsufficientFunds, acc.Balance, m.Amount)
		}
		next = acc.Balance - m.Amount
	}

	rows, err := qtx.UpdateAccountBalance(ctx, repository.UpdateAccountBalanceParams{ID: m.AccountID, Balance: next})
	if err != nil {
		return 0, fmt.Errorf("update balance: %w", err)
	}
	if err := requireExactlyOne(rows, "update balance"); err != nil {
		return 0, err
	}

	if _, err := qtx.InsertLedgerEntry(ctx, repository.InsertLedgerEntryParams{
		ID:              uuid.New(),
		AccountID:       m.AccountID,
		Kind:            m.Kind,
		Amount:          sign * m.Amount,
		BalanceAfter:    next,
		RelatedRecordID: m.RelatedRecordID,
	}); err != nil {
		return 0, fmt.Errorf("append ledger entry: %w", err)
	}

	direction := domain.DirectionCredit
	if sign < 0 {
		direction = domain.DirectionDebit
	}
	observability.IncrementLedgerMutation(m.Kind, direction)
	return next, nil
}

// Entries lists ledger entries newest first, for one account or, when
// accountID is nil, for all accounts.
func (s *LedgerService) Entries(ctx context.Context, accountID *uuid.UUID, page, pageSize int) ([]models.LedgerEntry, error) {
	limit, offset := pageBounds(page, pageSize)
	q := s.store.Queries()
	if accountID == nil {
		return q.ListLedgerEntries(ctx, repository.ListPageParams{Limit: limit, Offset: offset})
	}
	return q.ListLedgerEntriesByAccount(ctx, repository.ListByAccountParams{AccountID: *accountID, Limit: limit, Offset: offset})
}
