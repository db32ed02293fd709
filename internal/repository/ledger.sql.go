package repository

import (
	"context"

	"github.com/ayo6706/solar-ledger/internal/models"
	"github.com/jackc/pgx/v5"
)

const ledgerColumns = `id, account_id, kind, amount, balance_after, related_record_id, created_at`

func scanLedgerEntry(row interface{ Scan(...any) error }) (models.LedgerEntry, error) {
	var e models.LedgerEntry
	err := row.Scan(&e.ID, &e.AccountID, &e.Kind, &e.Amount, &e.BalanceAfter, &e.RelatedRecordID, &e.CreatedAt)
	return e, err
}

func collectLedgerEntries(rows pgx.Rows) ([]models.LedgerEntry, error) {
	defer rows.Close()
	var items []models.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

const insertLedgerEntry = `
INSERT INTO ledger_entries (id, account_id, kind, amount, balance_after, related_record_id)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + ledgerColumns

func (q *Queries) InsertLedgerEntry(ctx context.Context, arg InsertLedgerEntryParams) (models.LedgerEntry, error) {
	row := q.db.QueryRow(ctx, insertLedgerEntry,
		arg.ID,
		arg.AccountID,
		arg.Kind,
		arg.Amount,
		arg.BalanceAfter,
		arg.RelatedRecordID,
	)
	return scanLedgerEntry(row)
}

const listLedgerEntriesByAccount = `
SELECT ` + ledgerColumns + `
FROM ledger_entries
WHERE account_id = $1
ORDER BY created_at DESC, seq DESC
LIMIT $2 OFFSET $3
`

func (q *Queries) ListLedgerEntriesByAccount(ctx context.Context, arg ListByAccountParams) ([]models.LedgerEntry, error) {
	rows, err := q.db.Query(ctx, listLedgerEntriesByAccount, arg.AccountID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return collectLedgerEntries(rows)
}

const listLedgerEntries = `
SELECT ` + ledgerColumns + `
FROM ledger_entries
ORDER BY created_at DESC, seq DESC
LIMIT $1 OFFSET $2
`

func (q *Queries) ListLedgerEntries(ctx context.Context, arg ListPageParams) ([]models.LedgerEntry, error) {
	rows, err := q.db.Query(ctx, listLedgerEntries, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return collectLedgerEntries(rows)
}
