// Package audit defines the immutable audit trail. Records are written once
// per accepted mutation and never updated or deleted by application logic.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Record is one immutable audit entry.
type Record struct {
	ID         uuid.UUID
	ActorID    uuid.UUID
	Action     string
	EntityID   uuid.UUID
	EntityType string
	Details    json.RawMessage
	OccurredAt time.Time
}

// EntityTypeBooking is the entity type for booking audit records.
const EntityTypeBooking = "booking"

// NewRecord creates an audit record stamped with the current time.
func NewRecord(actorID uuid.UUID, action string, entityID uuid.UUID, entityType string, details json.RawMessage) *Record {
	return &Record{
		ID:         uuid.New(),
		ActorID:    actorID,
		Action:     action,
		EntityID:   entityID,
		EntityType: entityType,
		Details:    details,
		OccurredAt: time.Now().UTC(),
	}
}

// Filter narrows audit queries. Zero-valued fields are ignored.
type Filter struct {
	ActorID  *uuid.UUID
	Action   string
	EntityID *uuid.UUID
}

// Repository defines the persistence contract for audit records.
type Repository interface {
	// Save appends one immutable record.
	Save(ctx context.Context, rec *Record) error

	// Find retrieves records matching the filter, newest first, paginated.
	Find(ctx context.Context, filter Filter, page, limit int) ([]*Record, int64, error)
}
