package repository

import (
	"context"

	"github.com/ayo6706/solar-ledger/internal/models"
)

const purchaseColumns = `id, account_id, product_id, amount, created_at`

const insertPurchaseRecord = `
INSERT INTO purchase_records (id, account_id, product_id, amount)
VALUES ($1, $2, $3, $4)
RETURNING ` + purchaseColumns

func (q *Queries) InsertPurchaseRecord(ctx context.Context, arg InsertPurchaseRecordParams) (models.PurchaseRecord, error) {
	var p models.PurchaseRecord
	err := q.db.QueryRow(ctx, insertPurchaseRecord, arg.ID, arg.AccountID, arg.ProductID, arg.Amount).
		Scan(&p.ID, &p.AccountID, &p.ProductID, &p.Amount, &p.CreatedAt)
	return p, err
}

const countPurchases = `
SELECT COUNT(*) FROM purchase_records WHERE account_id = $1 AND product_id = $2
`

func (q *Queries) CountPurchases(ctx context.Context, arg CountPurchasesParams) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countPurchases, arg.AccountID, arg.ProductID).Scan(&n)
	return n, err
}

const listPurchaseRecordsByAccount = `
SELECT ` + purchaseColumns + `
FROM purchase_records
WHERE account_id = $1
ORDER BY created_at DESC, id
LIMIT $2 OFFSET $3
`

func (q *Queries) ListPurchaseRecordsByAccount(ctx context.Context, arg ListByAccountParams) ([]models.PurchaseRecord, error) {
	rows, err := q.db.Query(ctx, listPurchaseRecordsByAccount, arg.AccountID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []models.PurchaseRecord
	for rows.Next() {
		var p models.PurchaseRecord
		if err := rows.Scan(&p.ID, &p.AccountID, &p.ProductID, &p.Amount, &p.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}
