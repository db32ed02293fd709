package repository

import (
	"context"

	"github.com/ayo6706/solar-ledger/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const withdrawalColumns = `id, account_id, requested_amount, fee_amount, net_amount, status, operator_note, resolved_by, created_at, resolved_at`

func scanWithdrawalRequest(row interface{ Scan(...any) error }) (models.WithdrawalRequest, error) {
	var (
		w          models.WithdrawalRequest
		resolvedBy pgtype.UUID
	)
	err := row.Scan(
		&w.ID,
		&w.AccountID,
		&w.RequestedAmount,
		&w.FeeAmount,
		&w.NetAmount,
		&w.Status,
		&w.OperatorNote,
		&resolvedBy,
		&w.CreatedAt,
		&w.ResolvedAt,
	)
	w.ResolvedBy = FromPgUUIDPtr(resolvedBy)
	return w, err
}

func collectWithdrawalRequests(rows pgx.Rows) ([]models.WithdrawalRequest, error) {
	defer rows.Close()
	var items []models.WithdrawalRequest
	for rows.Next() {
		w, err := scanWithdrawalRequest(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, w)
	}
	return items, rows.Err()
}

const insertWithdrawalRequest = `
INSERT INTO withdrawal_requests (id, account_id, requested_amount, fee_amount, net_amount, status)
VALUES ($1, $2, $3, $4, $5, 'pending')
RETURNING ` + withdrawalColumns

func (q *Queries) InsertWithdrawalRequest(ctx context.Context, arg InsertWithdrawalRequestParams) (models.WithdrawalRequest, error) {
	row := q.db.QueryRow(ctx, insertWithdrawalRequest,
		arg.ID,
		arg.AccountID,
		arg.RequestedAmount,
		arg.FeeAmount,
		arg.NetAmount,
	)
	return scanWithdrawalRequest(row)
}

const getWithdrawalRequest = `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE id = $1`

func (q *Queries) GetWithdrawalRequest(ctx context.Context, id uuid.UUID) (models.WithdrawalRequest, error) {
	return scanWithdrawalRequest(q.db.QueryRow(ctx, getWithdrawalRequest, id))
}

const getWithdrawalRequestForUpdate = getWithdrawalRequest + ` FOR UPDATE`

func (q *Queries) GetWithdrawalRequestForUpdate(ctx context.Context, id uuid.UUID) (models.WithdrawalRequest, error) {
	return scanWithdrawalRequest(q.db.QueryRow(ctx, getWithdrawalRequestForUpdate, id))
}

const resolveWithdrawalRequest = `
UPDATE withdrawal_requests
SET status = $2, operator_note = $3, resolved_by = $4, resolved_at = $5
WHERE id = $1 AND status = 'pending'
`

func (q *Queries) ResolveWithdrawalRequest(ctx context.Context, arg ResolveParams) (int64, error) {
	tag, err := q.db.Exec(ctx, resolveWithdrawalRequest,
		arg.ID,
		arg.Status,
		arg.OperatorNote,
		ToPgUUIDPtr(arg.ResolvedBy),
		arg.ResolvedAt,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const listWithdrawalRequestsByAccount = `
SELECT ` + withdrawalColumns + `
FROM withdrawal_requests
WHERE account_id = $1
ORDER BY created_at DESC, id
LIMIT $2 OFFSET $3
`

func (q *Queries) ListWithdrawalRequestsByAccount(ctx context.Context, arg ListByAccountParams) ([]models.WithdrawalRequest, error) {
	rows, err := q.db.Query(ctx, listWithdrawalRequestsByAccount, arg.AccountID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return collectWithdrawalRequests(rows)
}

const listWithdrawalRequestsByStatus = `
SELECT ` + withdrawalColumns + `
FROM withdrawal_requests
WHERE status = $1
ORDER BY created_at ASC, id
LIMIT $2 OFFSET $3
`

func (q *Queries) ListWithdrawalRequestsByStatus(ctx context.Context, arg ListByStatusParams) ([]models.WithdrawalRequest, error) {
	rows, err := q.db.Query(ctx, listWithdrawalRequestsByStatus, arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return collectWithdrawalRequests(rows)
}
