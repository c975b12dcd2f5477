// Package identity holds the local replica of user contact data owned by
// the identity service, kept current by consuming identity events. The
// notification dispatcher resolves delivery addresses from it.
package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Contact is the delivery address on file for a user.
type Contact struct {
	UserID      uuid.UUID
	Email       string
	DisplayName string
	UpdatedAt   time.Time
}

// ContactRepository defines the persistence contract for the contact replica.
type ContactRepository interface {
	// FindByUserID retrieves a contact, or a not-found error when the user
	// has no delivery address on file.
	FindByUserID(ctx context.Context, userID uuid.UUID) (*Contact, error)

	// Upsert inserts or replaces a contact.
	Upsert(ctx context.Context, contact *Contact) error
}
