package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	booking "github.com/slotable/service-booking/internal/domain/booking"
	"github.com/slotable/service-booking/internal/domain/identity"
	"github.com/slotable/service-booking/internal/platform/domain"
)

// ledgerAppender is the slice of the booking repository the dispatcher needs.
type ledgerAppender interface {
	AppendNotificationEntry(ctx context.Context, bookingID uuid.UUID, entry booking.NotificationEntry) error
}

// Dispatcher renders and attempts delivery of the customer- and
// provider-facing messages for one lifecycle event, then records the outcome
// on the booking's notification ledger. It never returns an error: every
// failure is caught, logged, and reflected only in the ledger, so an
// unreliable mail transport can never alter the outcome of the transition
// that triggered it.
type Dispatcher struct {
	mailer   Mailer
	contacts identity.ContactRepository
	bookings ledgerAppender
	logger   *zap.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(mailer Mailer, contacts identity.ContactRepository, bookings ledgerAppender, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		mailer:   mailer,
		contacts: contacts,
		bookings: bookings,
		logger:   logger,
	}
}

// Dispatch makes one best-effort delivery attempt per audience and appends a
// ledger entry regardless of individual outcomes.
func (d *Dispatcher) Dispatch(ctx context.Context, evt booking.TransitionEvent) {
	bk := evt.After
	entry := booking.NotificationEntry{
		EventType:   string(evt.Type),
		AttemptedAt: time.Now().UTC(),
	}

	entry.CustomerDelivered = d.attempt(ctx, AudienceCustomer, bk.CustomerID(), evt)
	entry.ProviderDelivered = d.attempt(ctx, AudienceProvider, bk.ProviderID(), evt)

	if err := d.bookings.AppendNotificationEntry(ctx, bk.ID(), entry); err != nil {
		d.logger.Error("failed to append notification ledger entry",
			zap.String("booking_id", bk.ID().String()),
			zap.String("event_type", string(evt.Type)),
			zap.Error(err),
		)
	}
}

// attempt resolves the audience's delivery address and makes a single
// delivery call. A missing address skips the attempt without failing the
// other audience's.
func (d *Dispatcher) attempt(ctx context.Context, audience Audience, userID uuid.UUID, evt booking.TransitionEvent) bool {
	contact, err := d.contacts.FindByUserID(ctx, userID)
	if err != nil {
		if domain.IsCode(err, domain.CodeNotFound) {
			d.logger.Info("no delivery address on file, skipping",
				zap.String("audience", string(audience)),
				zap.String("user_id", userID.String()),
			)
		} else {
			d.logger.Error("failed to resolve delivery address",
				zap.String("audience", string(audience)),
				zap.String("user_id", userID.String()),
				zap.Error(err),
			)
		}
		return false
	}

	msg, err := renderMessage(audience, evt)
	if err != nil {
		d.logger.Error("failed to render notification",
			zap.String("audience", string(audience)),
			zap.String("event_type", string(evt.Type)),
			zap.Error(err),
		)
		return false
	}

	if err := d.mailer.Send(ctx, contact.Email, msg.Subject, msg.Body); err != nil {
		d.logger.Warn("notification delivery failed",
			zap.String("audience", string(audience)),
			zap.String("booking_id", evt.After.ID().String()),
			zap.Error(err),
		)
		return false
	}
	return true
}
