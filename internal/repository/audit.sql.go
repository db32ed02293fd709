package repository

import (
	"context"

	"github.com/ayo6706/solar-ledger/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const insertAuditLog = `
INSERT INTO audit_log (entity_type, entity_id, actor_id, action, prev_state, next_state, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id
`

func (q *Queries) InsertAuditLog(ctx context.Context, arg InsertAuditLogParams) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx, insertAuditLog,
		arg.EntityType,
		arg.EntityID,
		ToPgUUIDPtr(arg.ActorID),
		arg.Action,
		arg.PrevState,
		arg.NextState,
		arg.Metadata,
	).Scan(&id)
	return id, err
}

const listAuditLogByEntity = `
SELECT id, entity_type, entity_id, actor_id, action, COALESCE(prev_state, ''), COALESCE(next_state, ''), metadata, created_at
FROM audit_log
WHERE entity_id = $1
ORDER BY id
`

func (q *Queries) ListAuditLogByEntity(ctx context.Context, entityID uuid.UUID) ([]models.AuditRecord, error) {
	rows, err := q.db.Query(ctx, listAuditLogByEntity, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []models.AuditRecord
	for rows.Next() {
		var (
			r     models.AuditRecord
			actor pgtype.UUID
		)
		if err := rows.Scan(&r.ID, &r.EntityType, &r.EntityID, &actor, &r.Action, &r.PrevState, &r.NextState, &r.Metadata, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.ActorID = FromPgUUIDPtr(actor)
		items = append(items, r)
	}
	return items, rows.Err()
}
