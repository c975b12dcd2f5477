package booking

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/slotable/service-booking/internal/platform/domain"
)

const bookingNumberChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// StatusHistoryEntry is one append-only record of an accepted status change.
type StatusHistoryEntry struct {
	Status    BookingStatus `json:"status"`
	ChangedAt time.Time     `json:"changed_at"`
	ChangedBy uuid.UUID     `json:"changed_by"`
}

// NotificationEntry records one best-effort notification attempt. It is
// informational only and never drives business logic.
type NotificationEntry struct {
	EventType         string    `json:"event_type"`
	AttemptedAt       time.Time `json:"attempted_at"`
	CustomerDelivered bool      `json:"customer_delivered"`
	ProviderDelivered bool      `json:"provider_delivered"`
}

// Booking is the aggregate root for the booking domain. Price, service and
// party references are write-once at creation; status only moves forward
// along the transition table in booking_status.go.
type Booking struct {
	id            uuid.UUID
	bookingNumber string
	customerID    uuid.UUID
	providerID    uuid.UUID
	serviceID     uuid.UUID
	status        BookingStatus

	scheduledAt      time.Time
	amountCents      int64
	totalAmountCents int64
	currency         string

	customerNote string
	providerNote string

	statusHistory      []StatusHistoryEntry
	notificationLedger []NotificationEntry
	lastTransitionAt   time.Time

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// generateBookingNumber creates a booking number in the format "BK-XXXXXX".
func generateBookingNumber() (string, error) {
	result := make([]byte, 6)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(bookingNumberChars))))
		if err != nil {
			return "", fmt.Errorf("failed to generate booking number: %w", err)
		}
		result[i] = bookingNumberChars[n.Int64()]
	}
	return "BK-" + string(result), nil
}

// NewBooking creates a new Booking aggregate with status=pending. The price
// snapshot and owning provider come from the referenced catalog service and
// are immutable thereafter.
func NewBooking(
	customerID uuid.UUID,
	serviceID uuid.UUID,
	providerID uuid.UUID,
	amountCents int64,
	totalAmountCents int64,
	currency string,
	scheduledAt time.Time,
	customerNote string,
) (*Booking, error) {
	if customerID == uuid.Nil {
		return nil, domain.NewValidationError("customer ID is required")
	}
	if serviceID == uuid.Nil {
		return nil, domain.NewValidationError("service ID is required")
	}
	if providerID == uuid.Nil {
		return nil, domain.NewValidationError("provider ID is required")
	}
	if scheduledAt.IsZero() {
		return nil, domain.NewValidationError("scheduled time is required")
	}
	if amountCents <= 0 {
		return nil, domain.NewValidationError("amount must be positive")
	}
	if totalAmountCents < amountCents {
		return nil, domain.NewValidationError("total amount cannot be less than amount")
	}

	bookingNumber, err := generateBookingNumber()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Booking{
		id:               uuid.New(),
		bookingNumber:    bookingNumber,
		customerID:       customerID,
		providerID:       providerID,
		serviceID:        serviceID,
		status:           StatusPending,
		scheduledAt:      scheduledAt,
		amountCents:      amountCents,
		totalAmountCents: totalAmountCents,
		currency:         currency,
		customerNote:     customerNote,
		statusHistory: []StatusHistoryEntry{
			{Status: StatusPending, ChangedAt: now, ChangedBy: customerID},
		},
		lastTransitionAt: now,
		version:          1,
		createdAt:        now,
		updatedAt:        now,
	}, nil
}

// ReconstructBooking rebuilds a Booking from persistence data (no validation).
func ReconstructBooking(
	id uuid.UUID,
	bookingNumber string,
	customerID uuid.UUID,
	providerID uuid.UUID,
	serviceID uuid.UUID,
	status BookingStatus,
	scheduledAt time.Time,
	amountCents int64,
	totalAmountCents int64,
	currency string,
	customerNote string,
	providerNote string,
	statusHistory []StatusHistoryEntry,
	notificationLedger []NotificationEntry,
	lastTransitionAt time.Time,
	version int64,
	createdAt time.Time,
	updatedAt time.Time,
) *Booking {
	return &Booking{
		id:                 id,
		bookingNumber:      bookingNumber,
		customerID:         customerID,
		providerID:         providerID,
		serviceID:          serviceID,
		status:             status,
		scheduledAt:        scheduledAt,
		amountCents:        amountCents,
		totalAmountCents:   totalAmountCents,
		currency:           currency,
		customerNote:       customerNote,
		providerNote:       providerNote,
		statusHistory:      statusHistory,
		notificationLedger: notificationLedger,
		lastTransitionAt:   lastTransitionAt,
		version:            version,
		createdAt:          createdAt,
		updatedAt:          updatedAt,
	}
}

// --- Getters ---

// ID returns the booking's unique identifier.
func (b *Booking) ID() uuid.UUID { return b.id }

// BookingNumber returns the human-readable booking number.
func (b *Booking) BookingNumber() string { return b.bookingNumber }

// CustomerID returns the booking customer's user ID.
func (b *Booking) CustomerID() uuid.UUID { return b.customerID }

// ProviderID returns the owning provider's user ID.
func (b *Booking) ProviderID() uuid.UUID { return b.providerID }

// ServiceID returns the booked catalog service ID.
func (b *Booking) ServiceID() uuid.UUID { return b.serviceID }

// Status returns the current booking status.
func (b *Booking) Status() BookingStatus { return b.status }

// ScheduledAt returns the appointment time.
func (b *Booking) ScheduledAt() time.Time { return b.scheduledAt }

// AmountCents returns the price snapshot taken at creation.
func (b *Booking) AmountCents() int64 { return b.amountCents }

// TotalAmountCents returns the total price snapshot taken at creation.
func (b *Booking) TotalAmountCents() int64 { return b.totalAmountCents }

// Currency returns the currency code.
func (b *Booking) Currency() string { return b.currency }

// CustomerNote returns the customer's free-text note.
func (b *Booking) CustomerNote() string { return b.customerNote }

// ProviderNote returns the provider's free-text note.
func (b *Booking) ProviderNote() string { return b.providerNote }

// StatusHistory returns a copy of the append-only status history. Callers
// cannot mutate the aggregate's backing slice.
func (b *Booking) StatusHistory() []StatusHistoryEntry {
	return append([]StatusHistoryEntry(nil), b.statusHistory...)
}

// NotificationLedger returns a copy of the append-only notification attempt
// ledger.
func (b *Booking) NotificationLedger() []NotificationEntry {
	return append([]NotificationEntry(nil), b.notificationLedger...)
}

// LastTransitionAt returns the timestamp of the most recent status change.
func (b *Booking) LastTransitionAt() time.Time { return b.lastTransitionAt }

// Version returns the entity version for optimistic locking.
func (b *Booking) Version() int64 { return b.version }

// CreatedAt returns the creation timestamp.
func (b *Booking) CreatedAt() time.Time { return b.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (b *Booking) UpdatedAt() time.Time { return b.updatedAt }

// --- Behavior ---

// TransitionTo moves the booking to the target status, appending exactly one
// status history entry stamped with the acting principal. Terminal sources
// are rejected before the transition table is consulted so callers can
// distinguish "booking is closed" from "invalid transition".
func (b *Booking) TransitionTo(target BookingStatus, actorID uuid.UUID) error {
	if b.status.IsTerminal() {
		return domain.NewTerminalStateError(fmt.Sprintf("booking is %s and cannot change status", b.status))
	}
	if !b.status.CanTransitionTo(target) {
		return domain.NewValidationError(fmt.Sprintf("cannot transition from %s to %s", b.status, target))
	}

	now := time.Now().UTC()
	b.status = target
	b.statusHistory = append(b.statusHistory, StatusHistoryEntry{
		Status:    target,
		ChangedAt: now,
		ChangedBy: actorID,
	})
	b.lastTransitionAt = now
	b.updatedAt = now
	return nil
}

// SetCustomerNote updates the customer's note field.
func (b *Booking) SetCustomerNote(note string) {
	b.customerNote = note
	b.updatedAt = time.Now().UTC()
}

// SetProviderNote updates the provider's note field.
func (b *Booking) SetProviderNote(note string) {
	b.providerNote = note
	b.updatedAt = time.Now().UTC()
}

// Reschedule updates the appointment time. The authorization gate decides
// who may do this and at which statuses.
func (b *Booking) Reschedule(scheduledAt time.Time) error {
	if scheduledAt.IsZero() {
		return domain.NewValidationError("scheduled time is required")
	}
	b.scheduledAt = scheduledAt
	b.updatedAt = time.Now().UTC()
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (b *Booking) IncrementVersion() {
	b.version++
	b.updatedAt = time.Now().UTC()
}
