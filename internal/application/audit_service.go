package application

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/slotable/service-booking/internal/domain/audit"
	"github.com/slotable/service-booking/internal/platform/domain"
)

// AuditRecordDTO is the response representation of an audit record.
type AuditRecordDTO struct {
	ID         uuid.UUID       `json:"id"`
	ActorID    uuid.UUID       `json:"actor_id"`
	Action     string          `json:"action"`
	EntityID   uuid.UUID       `json:"entity_id"`
	EntityType string          `json:"entity_type"`
	Details    json.RawMessage `json:"details,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// AuditQuery carries the admin-facing audit filters.
type AuditQuery struct {
	ActorID  *uuid.UUID
	Action   string
	EntityID *uuid.UUID
}

// AuditService records and queries the immutable audit trail. Recording is
// observational: a failed write is logged and swallowed so the mutation it
// describes is never rolled back or blocked.
type AuditService struct {
	repo   audit.Repository
	logger *zap.Logger
}

// NewAuditService creates a new AuditService.
func NewAuditService(repo audit.Repository, logger *zap.Logger) *AuditService {
	return &AuditService{repo: repo, logger: logger}
}

// Record appends one audit record. Failure to write is logged, never
// propagated.
func (s *AuditService) Record(ctx context.Context, actorID uuid.UUID, action string, entityID uuid.UUID, entityType string, details json.RawMessage) {
	rec := audit.NewRecord(actorID, action, entityID, entityType, details)
	if err := s.repo.Save(ctx, rec); err != nil {
		s.logger.Error("failed to write audit record",
			zap.String("action", action),
			zap.String("entity_id", entityID.String()),
			zap.Error(err),
		)
	}
}

// Query returns audit records matching the filter, newest first (admin).
func (s *AuditService) Query(ctx context.Context, q AuditQuery, page, limit int) (*domain.PaginatedResult[AuditRecordDTO], error) {
	filter := audit.Filter{
		ActorID:  q.ActorID,
		Action:   q.Action,
		EntityID: q.EntityID,
	}

	records, total, err := s.repo.Find(ctx, filter, page, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}

	dtos := make([]AuditRecordDTO, len(records))
	for i, rec := range records {
		dtos[i] = AuditRecordDTO{
			ID:         rec.ID,
			ActorID:    rec.ActorID,
			Action:     rec.Action,
			EntityID:   rec.EntityID,
			EntityType: rec.EntityType,
			Details:    rec.Details,
			OccurredAt: rec.OccurredAt,
		}
	}

	result := domain.NewPaginatedResult(dtos, total, page, limit)
	return &result, nil
}
