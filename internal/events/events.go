// Package events defines the Kafka topics and payloads this service
// produces and consumes, plus the consumers keeping the local catalog and
// contact replicas current.
package events

import (
	"time"

	"github.com/google/uuid"

	booking "github.com/slotable/service-booking/internal/domain/booking"
)

// Topics.
const (
	TopicBookingEvents  = "booking.events"
	TopicCatalogEvents  = "catalog.events"
	TopicIdentityEvents = "identity.events"
)

// Consumed event types.
const (
	ServiceCreated     = "service.created"
	ServiceUpdated     = "service.updated"
	ServiceDeactivated = "service.deactivated"
	UserCreated        = "user.created"
	UserUpdated        = "user.updated"
)

// ServiceUpsertedEvent announces a created or updated catalog service.
type ServiceUpsertedEvent struct {
	ServiceID  uuid.UUID `json:"service_id"`
	ProviderID uuid.UUID `json:"provider_id"`
	Name       string    `json:"name"`
	PriceCents int64     `json:"price_cents"`
	Currency   string    `json:"currency"`
	Active     bool      `json:"active"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ServiceDeactivatedEvent announces a catalog service taken offline.
type ServiceDeactivatedEvent struct {
	ServiceID  uuid.UUID `json:"service_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// UserUpsertedEvent announces a created or updated user profile.
type UserUpsertedEvent struct {
	UserID      uuid.UUID `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// BookingEvent is the published payload for booking lifecycle events. The
// CloudEvent type field carries the booking.EventType value.
type BookingEvent struct {
	BookingID      uuid.UUID         `json:"booking_id"`
	BookingNumber  string            `json:"booking_number"`
	CustomerID     uuid.UUID         `json:"customer_id"`
	ProviderID     uuid.UUID         `json:"provider_id"`
	ServiceID      uuid.UUID         `json:"service_id"`
	Status         string            `json:"status"`
	PreviousStatus string            `json:"previous_status,omitempty"`
	ActorID        uuid.UUID         `json:"actor_id"`
	Changes        booking.ChangeSet `json:"changes,omitempty"`
	OccurredAt     time.Time         `json:"occurred_at"`
}

// NewBookingEvent builds the published payload from a transition event.
func NewBookingEvent(evt booking.TransitionEvent) BookingEvent {
	bk := evt.After
	out := BookingEvent{
		BookingID:     bk.ID(),
		BookingNumber: bk.BookingNumber(),
		CustomerID:    bk.CustomerID(),
		ProviderID:    bk.ProviderID(),
		ServiceID:     bk.ServiceID(),
		Status:        string(bk.Status()),
		ActorID:       evt.ActorID,
		Changes:       evt.Changes,
		OccurredAt:    evt.OccurredAt,
	}
	if evt.Before != nil {
		out.PreviousStatus = string(evt.Before.Status())
	}
	return out
}
