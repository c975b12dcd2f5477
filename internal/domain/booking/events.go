package booking

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies a booking lifecycle event.
type EventType string

const (
	EventBookingCreated       EventType = "booking.created"
	EventBookingStatusChanged EventType = "booking.status_changed"
	EventBookingAnnotated     EventType = "booking.annotated"
)

// Notifies reports whether this event type produces customer/provider
// notifications. Annotations are audited but not mailed.
func (e EventType) Notifies() bool {
	return e == EventBookingCreated || e == EventBookingStatusChanged
}

// Audit action names, one per accepted mutation kind.
const (
	AuditBookingCreated   = "BOOKING_CREATED"
	AuditBookingConfirmed = "BOOKING_CONFIRMED"
	AuditBookingCompleted = "BOOKING_COMPLETED"
	AuditBookingCancelled = "BOOKING_CANCELLED"
	AuditBookingAnnotated = "BOOKING_ANNOTATED"
)

// AuditActionFor maps a transition target to its audit action name.
func AuditActionFor(target BookingStatus) string {
	switch target {
	case StatusConfirmed:
		return AuditBookingConfirmed
	case StatusCompleted:
		return AuditBookingCompleted
	case StatusCancelled:
		return AuditBookingCancelled
	default:
		return AuditBookingCreated
	}
}

// TransitionEvent carries everything the side-effect pipeline needs: the
// pre- and post-mutation snapshots, the acting principal and the typed
// change set. It is produced by the lifecycle controller after the primary
// write has committed and can never revert it.
type TransitionEvent struct {
	Type        EventType
	AuditAction string
	ActorID     uuid.UUID
	Before      *Booking
	After       *Booking
	Changes     ChangeSet
	OccurredAt  time.Time
}
