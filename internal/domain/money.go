package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FeeSchedule computes the withdrawal fee as a fraction of the requested amount.
// Amounts are whole KSh stored as int64.
type FeeSchedule struct {
	Rate decimal.Decimal
}

// NewFeeSchedule parses a decimal rate such as "0.10". The rate must be in [0, 1].
func NewFeeSchedule(rate string) (FeeSchedule, error) {
	d, err := decimal.NewFromString(rate)
	if err != nil {
		return FeeSchedule{}, fmt.Errorf("parse fee rate %q: %w", rate, err)
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(1)) {
		return FeeSchedule{}, fmt.Errorf("fee rate %s out of range [0,1]", d)
	}
	return FeeSchedule{Rate: d}, nil
}

// Split returns fee and net for amount. The fee is rounded half away from zero,
// so fee + net always equals amount.
func (f FeeSchedule) Split(amount int64) (fee, net int64) {
	fee = decimal.NewFromInt(amount).Mul(f.Rate).Round(0).IntPart()
	if fee < 0 {
		fee = 0
	}
	if fee > amount {
		fee = amount
	}
	return fee, amount - fee
}

// FormatKES renders an amount for human-facing messages.
func FormatKES(amount int64) string {
	return "KSh " + decimal.NewFromInt(amount).StringFixed(0)
}
