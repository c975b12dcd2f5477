package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ChangeScope restricts change-feed and list queries to a principal's
// role-visible set. Nil fields mean unscoped (administrators).
type ChangeScope struct {
	CustomerID *uuid.UUID
	ProviderID *uuid.UUID
}

// Repository defines the persistence contract for booking aggregates.
type Repository interface {
	// FindByID retrieves a booking by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// FindByCustomerID retrieves bookings belonging to a customer with pagination.
	FindByCustomerID(ctx context.Context, customerID uuid.UUID, page, limit int) ([]*Booking, int64, error)

	// FindByProviderID retrieves bookings owned by a provider with pagination.
	FindByProviderID(ctx context.Context, providerID uuid.UUID, page, limit int) ([]*Booking, int64, error)

	// FindChangedSince retrieves bookings whose lastTransitionAt is at or
	// after the cursor, scoped to the caller's visible set.
	FindChangedSince(ctx context.Context, since time.Time, scope ChangeScope) ([]*Booking, error)

	// ListAll retrieves all bookings with pagination (admin).
	ListAll(ctx context.Context, page, limit int) ([]*Booking, int64, error)

	// CountByStatus returns booking counts grouped by status (admin).
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// Save persists a new booking.
	Save(ctx context.Context, booking *Booking) error

	// Update persists changes to an existing booking. The write is
	// conditioned on the version read at decision time; a lost race
	// surfaces as a conflict error, never a silent overwrite.
	Update(ctx context.Context, booking *Booking) error

	// AppendNotificationEntry appends one entry to the booking's
	// notification ledger without touching the optimistic-lock version.
	AppendNotificationEntry(ctx context.Context, bookingID uuid.UUID, entry NotificationEntry) error
}
