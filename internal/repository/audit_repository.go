package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/slotable/service-booking/internal/domain/audit"
)

// AuditRecordModel is the GORM model for the audit_records table. Rows are
// insert-only; application logic never updates or deletes them.
type AuditRecordModel struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ActorID    uuid.UUID       `gorm:"type:uuid;index;not null"`
	Action     string          `gorm:"not null;size:50;index"`
	EntityID   uuid.UUID       `gorm:"type:uuid;index;not null"`
	EntityType string          `gorm:"not null;size:30"`
	Details    json.RawMessage `gorm:"type:jsonb"`
	OccurredAt time.Time       `gorm:"not null;index"`
}

// TableName returns the table name for the GORM model.
func (AuditRecordModel) TableName() string {
	return "audit_records"
}

// GormAuditRepository is the GORM-based implementation of audit.Repository.
type GormAuditRepository struct {
	db *gorm.DB
}

// NewGormAuditRepository creates a new GormAuditRepository.
func NewGormAuditRepository(db *gorm.DB) *GormAuditRepository {
	return &GormAuditRepository{db: db}
}

// Save appends one immutable audit record.
func (r *GormAuditRepository) Save(ctx context.Context, rec *audit.Record) error {
	model := AuditRecordModel{
		ID:         rec.ID,
		ActorID:    rec.ActorID,
		Action:     rec.Action,
		EntityID:   rec.EntityID,
		EntityType: rec.EntityType,
		Details:    rec.Details,
		OccurredAt: rec.OccurredAt,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to save audit record: %w", err)
	}
	return nil
}

// Find retrieves records matching the filter, newest first, paginated.
func (r *GormAuditRepository) Find(ctx context.Context, filter audit.Filter, page, limit int) ([]*audit.Record, int64, error) {
	query := r.db.WithContext(ctx).Model(&AuditRecordModel{})
	if filter.ActorID != nil {
		query = query.Where("actor_id = ?", *filter.ActorID)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.EntityID != nil {
		query = query.Where("entity_id = ?", *filter.EntityID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count audit records: %w", err)
	}

	var models []AuditRecordModel
	offset := (page - 1) * limit
	if err := query.
		Order("occurred_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to find audit records: %w", err)
	}

	records := make([]*audit.Record, len(models))
	for i, m := range models {
		records[i] = &audit.Record{
			ID:         m.ID,
			ActorID:    m.ActorID,
			Action:     m.Action,
			EntityID:   m.EntityID,
			EntityType: m.EntityType,
			Details:    m.Details,
			OccurredAt: m.OccurredAt,
		}
	}
	return records, total, nil
}
