package service

import (
	"context"
	"fmt"

	"github.com/ayo6706/solar-ledger/internal/domain"
	"github.com/ayo6706/solar-ledger/internal/events"
	"github.com/ayo6706/solar-ledger/internal/observability"
	"github.com/ayo6706/solar-ledger/internal/repository"
	"github.com/google/uuid"
)

// ReferralService credits referrers and keeps their referral counters.
type ReferralService struct {
	store  QueryStore
	ledger *LedgerService
	bonus  int64
}

func NewReferralService(store QueryStore, ledger *LedgerService, bonus int64) *ReferralService {
	if bonus <= 0 {
		bonus = domain.DefaultReferralBonus
	}
	return &ReferralService{store: store, ledger: ledger, bonus: bonus}
}

// Bonus is the amount credited per successful referral.
func (s *ReferralService) Bonus() int64 {
	return s.bonus
}

// ReferralCredit is the payload of a ReferralCredited event.
type ReferralCredit struct {
	ReferrerID      uuid.UUID `json:"referrer_id"`
	Bonus           int64     `json:"bonus"`
	RelatedRecordID uuid.UUID `json:"related_record_id"`
	BalanceAfter    int64     `json:"balance_after"`
}

// CreditReferral pays bonus to the referrer in its own transaction.
func (s *ReferralService) CreditReferral(ctx context.Context, referrerID uuid.UUID, bonus int64, relatedRecordID uuid.UUID) (*ReferralCredit, error) {
	var credit *ReferralCredit
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		var err error
		credit, err = s.CreditReferralTx(ctx, qtx, referrerID, bonus, relatedRecordID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return credit, nil
}

// CreditReferralTx pays bonus inside the caller's transaction: one ledger
// credit of kind referral_bonus plus the referrer's count and earnings.
func (s *ReferralService) CreditReferralTx(ctx context.Context, qtx repository.Querier, referrerID uuid.UUID, bonus int64, relatedRecordID uuid.UUID) (*ReferralCredit, error) {
	balance, err := s.ledger.CreditTx(ctx, qtx, Mutation{
		AccountID:       referrerID,
		Amount:          bonus,
		Kind:            domain.KindReferralBonus,
		RelatedRecordID: relatedRecordID,
	})
	if err != nil {
		return nil, fmt.Errorf("credit referral bonus: %w", err)
	}

	rows, err := qtx.IncrementReferralStats(ctx, repository.IncrementReferralStatsParams{ID: referrerID, Amount: bonus})
	if err != nil {
		return nil, fmt.Errorf("update referral stats: %w", err)
	}
	if err := requireExactlyOne(rows, "update referral stats"); err != nil {
		return nil, err
	}

	credit := &ReferralCredit{
		ReferrerID:      referrerID,
		Bonus:           bonus,
		RelatedRecordID: relatedRecordID,
		BalanceAfter:    balance,
	}
	if err := enqueueEvent(ctx, qtx, events.ReferralCredited, relatedRecordID, referrerID, credit); err != nil {
		return nil, err
	}
	observability.IncrementWorkflowTransition("referral", "credited")
	return credit, nil
}
