package repository

import (
	"context"

	"github.com/ayo6706/solar-ledger/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const accountColumns = `id, name, phone, balance, referral_code, referred_by, referral_earnings, referral_count, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (models.Account, error) {
	var (
		a          models.Account
		referredBy pgtype.UUID
	)
	err := row.Scan(
		&a.ID,
		&a.Name,
		&a.Phone,
		&a.Balance,
		&a.ReferralCode,
		&referredBy,
		&a.ReferralEarnings,
		&a.ReferralCount,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	a.ReferredBy = FromPgUUIDPtr(referredBy)
	return a, err
}

const createAccount = `
INSERT INTO accounts (id, name, phone, referral_code, referred_by)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + accountColumns

func (q *Queries) CreateAccount(ctx context.Context, arg CreateAccountParams) (models.Account, error) {
	row := q.db.QueryRow(ctx, createAccount,
		arg.ID,
		arg.Name,
		arg.Phone,
		arg.ReferralCode,
		ToPgUUIDPtr(arg.ReferredBy),
	)
	return scanAccount(row)
}

const getAccount = `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

func (q *Queries) GetAccount(ctx context.Context, id uuid.UUID) (models.Account, error) {
	return scanAccount(q.db.QueryRow(ctx, getAccount, id))
}

const getAccountForUpdate = getAccount + ` FOR UPDATE`

func (q *Queries) GetAccountForUpdate(ctx context.Context, id uuid.UUID) (models.Account, error) {
	return scanAccount(q.db.QueryRow(ctx, getAccountForUpdate, id))
}

const getAccountByReferralCode = `SELECT ` + accountColumns + ` FROM accounts WHERE referral_code = $1`

func (q *Queries) GetAccountByReferralCode(ctx context.Context, code string) (models.Account, error) {
	return scanAccount(q.db.QueryRow(ctx, getAccountByReferralCode, code))
}

const updateAccountBalance = `
UPDATE accounts
SET balance = $2, updated_at = NOW()
WHERE id = $1
`

func (q *Queries) UpdateAccountBalance(ctx context.Context, arg UpdateAccountBalanceParams) (int64, error) {
	tag, err := q.db.Exec(ctx, updateAccountBalance, arg.ID, arg.Balance)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const incrementReferralStats = `
UPDATE accounts
SET referral_count = referral_count + 1,
    referral_earnings = referral_earnings + $2,
    updated_at = NOW()
WHERE id = $1
`

func (q *Queries) IncrementReferralStats(ctx context.Context, arg IncrementReferralStatsParams) (int64, error) {
	tag, err := q.db.Exec(ctx, incrementReferralStats, arg.ID, arg.Amount)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const listBalanceDrift = `
SELECT a.id, a.balance, COALESCE(SUM(e.amount), 0)::BIGINT AS ledger_sum
FROM accounts a
LEFT JOIN ledger_entries e ON e.account_id = a.id
GROUP BY a.id, a.balance
HAVING a.balance <> COALESCE(SUM(e.amount), 0)
ORDER BY a.id
`

func (q *Queries) ListBalanceDrift(ctx context.Context) ([]models.BalanceDrift, error) {
	rows, err := q.db.Query(ctx, listBalanceDrift)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []models.BalanceDrift
	for rows.Next() {
		var d models.BalanceDrift
		if err := rows.Scan(&d.AccountID, &d.Balance, &d.LedgerSum); err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}
