package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ayo6706/solar-ledger/internal/domain"
	"github.com/ayo6706/solar-ledger/internal/events"
	"github.com/ayo6706/solar-ledger/internal/models"
	"github.com/ayo6706/solar-ledger/internal/observability"
	"github.com/ayo6706/solar-ledger/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const entityWithdrawal = "withdrawal_request"

// WithdrawalService debits the requested amount at submission and leaves the
// payout to an operator. Rejection refunds the full requested amount.
type WithdrawalService struct {
	store     QueryStore
	ledger    *LedgerService
	audit     *AuditService
	minAmount int64
	fees      domain.FeeSchedule
	window    domain.Window
	now       func() time.Time
}

func NewWithdrawalService(store QueryStore, ledger *LedgerService, minAmount int64, fees domain.FeeSchedule, window domain.Window) *WithdrawalService {
	if minAmount <= 0 {
		minAmount = domain.DefaultMinWithdrawal
	}
	return &WithdrawalService{
		store:     store,
		ledger:    ledger,
		audit:     NewAuditService(store),
		minAmount: minAmount,
		fees:      fees,
		window:    window,
		now:       time.Now,
	}
}

// WithClock overrides the clock used for the window check and resolved_at.
func (s *WithdrawalService) WithClock(now func() time.Time) *WithdrawalService {
	if now != nil {
		s.now = now
	}
	return s
}

// WindowStatus tells clients whether withdrawals are accepted right now.
type WindowStatus struct {
	Open     bool      `json:"open"`
	Schedule string    `json:"schedule"`
	Now      time.Time `json:"now"`
}

func (s *WithdrawalService) Window() WindowStatus {
	now := s.now()
	loc := s.window.Location
	if loc == nil {
		loc = time.UTC
	}
	return WindowStatus{
		Open:     s.window.Contains(now),
		Schedule: s.window.String(),
		Now:      now.In(loc),
	}
}

// Terms are the published withdrawal rules.
type Terms struct {
	MinDeposit    int64            `json:"min_deposit"`
	MinWithdrawal int64            `json:"min_withdrawal"`
	FeeRate       string           `json:"withdrawal_fee_rate"`
	Window        string           `json:"withdrawal_window"`
	Quote         *WithdrawalQuote `json:"quote,omitempty"`
}

func (s *WithdrawalService) Terms(minDeposit int64) Terms {
	return Terms{
		MinDeposit:    minDeposit,
		MinWithdrawal: s.minAmount,
		FeeRate:       s.fees.Rate.String(),
		Window:        s.window.String(),
	}
}

// Quote returns the fee and net amount a withdrawal of amount would produce.
func (s *WithdrawalService) Quote(amount int64) (fee, net int64) {
	return s.fees.Split(amount)
}

// WithdrawalQuote is the fee split for a prospective withdrawal.
type WithdrawalQuote struct {
	Amount       int64 `json:"amount"`
	Fee          int64 `json:"fee_amount"`
	Net          int64 `json:"net_amount"`
	AboveMinimum bool  `json:"above_minimum"`
}

// QuoteFor prices a withdrawal of amount without touching any balance.
func (s *WithdrawalService) QuoteFor(amount int64) (*WithdrawalQuote, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	fee, net := s.Quote(amount)
	return &WithdrawalQuote{
		Amount:       amount,
		Fee:          fee,
		Net:          net,
		AboveMinimum: amount >= s.minAmount,
	}, nil
}

type SubmitWithdrawalRequest struct {
	AccountID uuid.UUID
	Amount    int64
}

// Submit validates the request, debits the full amount and records a pending
// request. Checks run in order: minimum, window, then funds.
func (s *WithdrawalService) Submit(ctx context.Context, req SubmitWithdrawalRequest) (*models.WithdrawalRequest, error) {
	if req.Amount < s.minAmount {
		return nil, fmt.Errorf("%w: minimum withdrawal is %s", domain.ErrBelowMinimum, domain.FormatKES(s.minAmount))
	}
	if !s.window.Contains(s.now()) {
		return nil, fmt.Errorf("%w: withdrawals are accepted %s", domain.ErrOutsideWindow, s.window)
	}

	fee, net := s.fees.Split(req.Amount)
	requestID := uuid.New()

	var request models.WithdrawalRequest
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		if _, err := s.ledger.DebitTx(ctx, qtx, Mutation{
			AccountID:       req.AccountID,
			Amount:          req.Amount,
			Kind:            domain.KindWithdrawal,
			RelatedRecordID: requestID,
		}); err != nil {
			return err
		}

		created, err := qtx.InsertWithdrawalRequest(ctx, repository.InsertWithdrawalRequestParams{
			ID:              requestID,
			AccountID:       req.AccountID,
			RequestedAmount: req.Amount,
			FeeAmount:       fee,
			NetAmount:       net,
		})
		if err != nil {
			return fmt.Errorf("insert withdrawal request: %w", err)
		}
		request = created

		if err := s.audit.Write(ctx, qtx, entityWithdrawal, created.ID, &req.AccountID, "submitted", "", domain.WithdrawalStatusPending, nil); err != nil {
			return err
		}
		return enqueueEvent(ctx, qtx, events.WithdrawalSubmitted, created.ID, created.AccountID, created)
	})
	if err != nil {
		return nil, err
	}

	observability.IncrementWorkflowTransition("withdrawal", "submitted")
	return &request, nil
}

// Process marks the request as paid out of band. The debit taken at
// submission stands.
func (s *WithdrawalService) Process(ctx context.Context, req ResolveRequest) (*models.WithdrawalRequest, error) {
	return s.resolve(ctx, req, domain.WithdrawalStatusProcessed, events.WithdrawalProcessed)
}

// Reject closes the request and refunds the requested amount.
func (s *WithdrawalService) Reject(ctx context.Context, req ResolveRequest) (*models.WithdrawalRequest, error) {
	return s.resolve(ctx, req, domain.WithdrawalStatusRejected, events.WithdrawalRejected)
}

func (s *WithdrawalService) resolve(ctx context.Context, req ResolveRequest, next string, eventType events.Type) (*models.WithdrawalRequest, error) {
	var request models.WithdrawalRequest
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		current, err := qtx.GetWithdrawalRequestForUpdate(ctx, req.ID)
		if err != nil {
			return lookupError(err, "withdrawal request")
		}
		if err := withdrawalTransitions.check("withdrawal request", current.Status, next); err != nil {
			return err
		}

		resolvedAt := s.now().UTC()
		rows, err := qtx.ResolveWithdrawalRequest(ctx, repository.ResolveParams{
			ID:           req.ID,
			Status:       next,
			OperatorNote: req.OperatorNote,
			ResolvedBy:   req.ActorID,
			ResolvedAt:   resolvedAt,
		})
		if err != nil {
			return fmt.Errorf("resolve withdrawal request: %w", err)
		}
		if err := requireExactlyOne(rows, "resolve withdrawal request"); err != nil {
			return err
		}

		if next == domain.WithdrawalStatusRejected {
			if _, err := s.ledger.CreditTx(ctx, qtx, Mutation{
				AccountID:       current.AccountID,
				Amount:          current.RequestedAmount,
				Kind:            domain.KindWithdrawal,
				RelatedRecordID: current.ID,
			}); err != nil {
				return fmt.Errorf("refund withdrawal: %w", err)
			}
		}

		if err := s.audit.Write(ctx, qtx, entityWithdrawal, current.ID, req.ActorID, next, current.Status, next, noteMetadata(req.OperatorNote)); err != nil {
			return err
		}

		request = current
		request.Status = next
		request.OperatorNote = req.OperatorNote
		request.ResolvedBy = req.ActorID
		request.ResolvedAt = &resolvedAt
		return enqueueEvent(ctx, qtx, eventType, request.ID, request.AccountID, request)
	})
	if err != nil {
		return nil, err
	}

	observability.IncrementWorkflowTransition("withdrawal", next)
	zap.L().Info("withdrawal request resolved",
		zap.String("request_id", request.ID.String()),
		zap.String("status", next),
		zap.Int64("requested_amount", request.RequestedAmount),
		zap.Int64("net_amount", request.NetAmount),
	)
	return &request, nil
}

func (s *WithdrawalService) Get(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	request, err := s.store.Queries().GetWithdrawalRequest(ctx, id)
	if err != nil {
		return nil, lookupError(err, "withdrawal request")
	}
	return &request, nil
}

// GetForAccount hides requests owned by other accounts behind domain.ErrNotFound.
func (s *WithdrawalService) GetForAccount(ctx context.Context, accountID, id uuid.UUID) (*models.WithdrawalRequest, error) {
	request, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.AccountID != accountID {
		return nil, fmt.Errorf("withdrawal request: %w", domain.ErrNotFound)
	}
	return request, nil
}

func (s *WithdrawalService) ListByAccount(ctx context.Context, accountID uuid.UUID, page, pageSize int) ([]models.WithdrawalRequest, error) {
	limit, offset := pageBounds(page, pageSize)
	return s.store.Queries().ListWithdrawalRequestsByAccount(ctx, repository.ListByAccountParams{
		AccountID: accountID,
		Limit:     limit,
		Offset:    offset,
	})
}

// ListByStatus is the operator queue, oldest first.
func (s *WithdrawalService) ListByStatus(ctx context.Context, status string, page, pageSize int) ([]models.WithdrawalRequest, error) {
	status = normalizeState(status)
	if status == "" {
		status = domain.WithdrawalStatusPending
	}
	if !withdrawalTransitions.has(status) {
		return nil, fmt.Errorf("%w: unknown withdrawal status %q", domain.ErrInvalidInput, status)
	}
	limit, offset := pageBounds(page, pageSize)
	requests, err := s.store.Queries().ListWithdrawalRequestsByStatus(ctx, repository.ListByStatusParams{
		Status: status,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, err
	}
	if status == domain.WithdrawalStatusPending && page <= 1 {
		observability.SetPendingQueueSize("withdrawal", len(requests))
	}
	return requests, nil
}
