package repository

import (
	"context"

	"github.com/ayo6706/solar-ledger/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const depositColumns = `id, account_id, amount, method, external_reference, status, external_confirmed, operator_note, resolved_by, created_at, resolved_at`

func scanDepositClaim(row interface{ Scan(...any) error }) (models.DepositClaim, error) {
	var (
		c          models.DepositClaim
		resolvedBy pgtype.UUID
	)
	err := row.Scan(
		&c.ID,
		&c.AccountID,
		&c.Amount,
		&c.Method,
		&c.ExternalReference,
		&c.Status,
		&c.ExternalConfirmed,
		&c.OperatorNote,
		&resolvedBy,
		&c.CreatedAt,
		&c.ResolvedAt,
	)
	c.ResolvedBy = FromPgUUIDPtr(resolvedBy)
	return c, err
}

func collectDepositClaims(rows pgx.Rows) ([]models.DepositClaim, error) {
	defer rows.Close()
	var items []models.DepositClaim
	for rows.Next() {
		c, err := scanDepositClaim(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const insertDepositClaim = `
INSERT INTO deposit_claims (id, account_id, amount, method, external_reference, status)
VALUES ($1, $2, $3, $4, $5, 'pending')
RETURNING ` + depositColumns

func (q *Queries) InsertDepositClaim(ctx context.Context, arg InsertDepositClaimParams) (models.DepositClaim, error) {
	row := q.db.QueryRow(ctx, insertDepositClaim,
		arg.ID,
		arg.AccountID,
		arg.Amount,
		arg.Method,
		arg.ExternalReference,
	)
	return scanDepositClaim(row)
}

const getDepositClaim = `SELECT ` + depositColumns + ` FROM deposit_claims WHERE id = $1`

func (q *Queries) GetDepositClaim(ctx context.Context, id uuid.UUID) (models.DepositClaim, error) {
	return scanDepositClaim(q.db.QueryRow(ctx, getDepositClaim, id))
}

const getDepositClaimForUpdate = getDepositClaim + ` FOR UPDATE`

func (q *Queries) GetDepositClaimForUpdate(ctx context.Context, id uuid.UUID) (models.DepositClaim, error) {
	return scanDepositClaim(q.db.QueryRow(ctx, getDepositClaimForUpdate, id))
}

const resolveDepositClaim = `
UPDATE deposit_claims
SET status = $2, operator_note = $3, resolved_by = $4, resolved_at = $5
WHERE id = $1 AND status = 'pending'
`

func (q *Queries) ResolveDepositClaim(ctx context.Context, arg ResolveParams) (int64, error) {
	tag, err := q.db.Exec(ctx, resolveDepositClaim,
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

const markDepositClaimsConfirmed = `
UPDATE deposit_claims
SET external_confirmed = TRUE
WHERE external_reference = $1 AND NOT external_confirmed
`

func (q *Queries) MarkDepositClaimsConfirmed(ctx context.Context, externalReference string) (int64, error) {
	tag, err := q.db.Exec(ctx, markDepositClaimsConfirmed, externalReference)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const listDepositClaimsByAccount = `
SELECT ` + depositColumns + `
FROM deposit_claims
WHERE account_id = $1
ORDER BY created_at DESC, id
LIMIT $2 OFFSET $3
`

func (q *Queries) ListDepositClaimsByAccount(ctx context.Context, arg ListByAccountParams) ([]models.DepositClaim, error) {
	rows, err := q.db.Query(ctx, listDepositClaimsByAccount, arg.AccountID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return collectDepositClaims(rows)
}

// Operator queues are served oldest first.
const listDepositClaimsByStatus = `
SELECT ` + depositColumns + `
FROM deposit_claims
WHERE status = $1
ORDER BY created_at ASC, id
LIMIT $2 OFFSET $3
`

func (q *Queries) ListDepositClaimsByStatus(ctx context.Context, arg ListByStatusParams) ([]models.DepositClaim, error) {
	rows, err := q.db.Query(ctx, listDepositClaimsByStatus, arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return collectDepositClaims(rows)
}
