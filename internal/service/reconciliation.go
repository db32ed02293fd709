package service

import (
	"context"
	"fmt"

	"github.com/ayo6706/solar-ledger/internal/models"
	"github.com/ayo6706/solar-ledger/internal/observability"
	"go.uber.org/zap"
)

// ReconciliationService verifies that every stored balance equals the sum of
// the account's ledger entries.
type ReconciliationService struct {
	store QueryStore
}

func NewReconciliationService(store QueryStore) *ReconciliationService {
	return &ReconciliationService{store: store}
}

type ReconciliationReport struct {
	Balanced bool                  `json:"balanced"`
	Drift    []models.BalanceDrift `json:"drift,omitempty"`
}

// Run reports drifting accounts. Drift is logged and counted, never repaired.
func (s *ReconciliationService) Run(ctx context.Context) (*ReconciliationReport, error) {
	drift, err := s.store.Queries().ListBalanceDrift(ctx)
	if err != nil {
		return nil, fmt.Errorf("list balance drift: %w", err)
	}

	if len(drift) == 0 {
		zap.L().Info("ledger balanced")
		return &ReconciliationReport{Balanced: true}, nil
	}

	observability.IncrementLedgerImbalance("all")
	for _, row := range drift {
		observability.IncrementLedgerImbalance("account")
		zap.L().Error("CRITICAL: balance does not match ledger",
			zap.String("account_id", row.AccountID.String()),
			zap.Int64("balance", row.Balance),
			zap.Int64("ledger_sum", row.LedgerSum),
		)
	}
	return &ReconciliationReport{Balanced: false, Drift: drift}, nil
}
