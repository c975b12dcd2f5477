// Package catalog holds the local read replica of the external service
// catalog. The catalog itself is owned by another service; this replica is
// kept current by consuming catalog events and exists so booking creation
// can validate references and snapshot prices without a synchronous call.
package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Service is a replicated catalog entry: the subset of catalog data the
// booking lifecycle needs.
type Service struct {
	ID         uuid.UUID
	ProviderID uuid.UUID
	Name       string
	PriceCents int64
	Currency   string
	Active     bool
	UpdatedAt  time.Time
}

// Repository defines the persistence contract for the catalog replica.
type Repository interface {
	// FindByID retrieves a replicated service by ID.
	FindByID(ctx context.Context, id uuid.UUID) (*Service, error)

	// Upsert inserts or replaces a replicated service.
	Upsert(ctx context.Context, svc *Service) error

	// Deactivate marks a replicated service inactive.
	Deactivate(ctx context.Context, id uuid.UUID) error
}
