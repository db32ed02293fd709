package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ayo6706/solar-ledger/internal/models"
	"github.com/ayo6706/solar-ledger/internal/repository"
	"github.com/google/uuid"
)

// AuditService writes immutable audit trail entries.
type AuditService struct {
	store QueryStore
}

func NewAuditService(store QueryStore) *AuditService {
	return &AuditService{store: store}
}

// Write stores a single immutable audit record inside the caller's transaction.
func (s *AuditService) Write(ctx context.Context, qtx repository.Querier, entityType string, entityID uuid.UUID, actorID *uuid.UUID, action, prevState, nextState string, metadata []byte) error {
	if _, err := qtx.InsertAuditLog(ctx, repository.InsertAuditLogParams{
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actorID,
		Action:     action,
		PrevState:  textParam(prevState),
		NextState:  textParam(nextState),
		Metadata:   metadata,
	}); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// Trail returns the audit history of one entity, oldest first.
func (s *AuditService) Trail(ctx context.Context, entityID uuid.UUID) ([]models.AuditRecord, error) {
	return s.store.Queries().ListAuditLogByEntity(ctx, entityID)
}

func textParam(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func noteMetadata(note string) []byte {
	if note == "" {
		return nil
	}
	b, _ := json.Marshal(map[string]string{"operator_note": note})
	return b
}
