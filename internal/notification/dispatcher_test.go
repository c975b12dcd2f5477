package notification_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/slotable/service-booking/internal/domain/booking"
	"github.com/slotable/service-booking/internal/domain/identity"
	"github.com/slotable/service-booking/internal/notification"
	"github.com/slotable/service-booking/internal/platform/domain"
)

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type fakeMailer struct {
	sent    []sentMail
	failFor map[string]error
}

func (m *fakeMailer) Send(_ context.Context, to, subject, htmlBody string) error {
	if err, ok := m.failFor[to]; ok {
		return err
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: htmlBody})
	return nil
}

type fakeContactRepo struct {
	contacts map[uuid.UUID]*identity.Contact
}

func (r *fakeContactRepo) FindByUserID(_ context.Context, userID uuid.UUID) (*identity.Contact, error) {
	c, ok := r.contacts[userID]
	if !ok {
		return nil, domain.NewNotFoundError("Contact", userID.String())
	}
	return c, nil
}

func (r *fakeContactRepo) Upsert(_ context.Context, c *identity.Contact) error {
	r.contacts[c.UserID] = c
	return nil
}

type fakeLedger struct {
	entries []booking.NotificationEntry
	err     error
}

func (l *fakeLedger) AppendNotificationEntry(_ context.Context, _ uuid.UUID, entry booking.NotificationEntry) error {
	if l.err != nil {
		return l.err
	}
	l.entries = append(l.entries, entry)
	return nil
}

type dispatcherFixture struct {
	dispatcher *notification.Dispatcher
	mailer     *fakeMailer
	contacts   *fakeContactRepo
	ledger     *fakeLedger
	booking    *booking.Booking
	customerID uuid.UUID
	providerID uuid.UUID
}

func newDispatcherFixture(t *testing.T) *dispatcherFixture {
	t.Helper()

	customerID := uuid.New()
	providerID := uuid.New()

	bk, err := booking.NewBooking(
		customerID, uuid.New(), providerID,
		4500, 4500, "USD",
		time.Now().Add(24*time.Hour).UTC(),
		"",
	)
	require.NoError(t, err)

	mailer := &fakeMailer{failFor: map[string]error{}}
	contacts := &fakeContactRepo{contacts: map[uuid.UUID]*identity.Contact{
		customerID: {UserID: customerID, Email: "customer@example.com", DisplayName: "Ana"},
		providerID: {UserID: providerID, Email: "provider@example.com", DisplayName: "Cleanly Ltd"},
	}}
	ledger := &fakeLedger{}

	return &dispatcherFixture{
		dispatcher: notification.NewDispatcher(mailer, contacts, ledger, zap.NewNop()),
		mailer:     mailer,
		contacts:   contacts,
		ledger:     ledger,
		booking:    bk,
		customerID: customerID,
		providerID: providerID,
	}
}

func createdEvent(bk *booking.Booking) booking.TransitionEvent {
	return booking.TransitionEvent{
		Type:        booking.EventBookingCreated,
		AuditAction: booking.AuditBookingCreated,
		ActorID:     bk.CustomerID(),
		After:       bk.Snapshot(),
		OccurredAt:  time.Now().UTC(),
	}
}

func TestDispatch_BothAudiencesDelivered(t *testing.T) {
	f := newDispatcherFixture(t)

	f.dispatcher.Dispatch(context.Background(), createdEvent(f.booking))

	require.Len(t, f.mailer.sent, 2)
	assert.Equal(t, "customer@example.com", f.mailer.sent[0].To)
	assert.Equal(t, "provider@example.com", f.mailer.sent[1].To)
	assert.Contains(t, f.mailer.sent[0].Body, f.booking.BookingNumber())
	assert.Contains(t, f.mailer.sent[0].Body, "45.00 USD")
	assert.True(t, strings.HasPrefix(f.mailer.sent[1].Subject, "New booking"))

	require.Len(t, f.ledger.entries, 1)
	entry := f.ledger.entries[0]
	assert.Equal(t, "booking.created", entry.EventType)
	assert.True(t, entry.CustomerDelivered)
	assert.True(t, entry.ProviderDelivered)
}

func TestDispatch_PartialFailure(t *testing.T) {
	f := newDispatcherFixture(t)
	f.mailer.failFor["customer@example.com"] = errors.New("smtp timeout")

	f.dispatcher.Dispatch(context.Background(), createdEvent(f.booking))

	// The provider's delivery is unaffected by the customer's failure.
	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "provider@example.com", f.mailer.sent[0].To)

	require.Len(t, f.ledger.entries, 1)
	assert.False(t, f.ledger.entries[0].CustomerDelivered)
	assert.True(t, f.ledger.entries[0].ProviderDelivered)
}

func TestDispatch_MissingAddressSkipsAudience(t *testing.T) {
	f := newDispatcherFixture(t)
	delete(f.contacts.contacts, f.providerID)

	f.dispatcher.Dispatch(context.Background(), createdEvent(f.booking))

	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "customer@example.com", f.mailer.sent[0].To)

	require.Len(t, f.ledger.entries, 1)
	assert.True(t, f.ledger.entries[0].CustomerDelivered)
	assert.False(t, f.ledger.entries[0].ProviderDelivered)
}

func TestDispatch_LedgerAppendedOnTotalFailure(t *testing.T) {
	f := newDispatcherFixture(t)
	f.mailer.failFor["customer@example.com"] = errors.New("smtp down")
	f.mailer.failFor["provider@example.com"] = errors.New("smtp down")

	f.dispatcher.Dispatch(context.Background(), createdEvent(f.booking))

	require.Len(t, f.ledger.entries, 1)
	assert.False(t, f.ledger.entries[0].CustomerDelivered)
	assert.False(t, f.ledger.entries[0].ProviderDelivered)
}

func TestDispatch_StatusChangedSubjects(t *testing.T) {
	f := newDispatcherFixture(t)
	require.NoError(t, f.booking.TransitionTo(booking.StatusConfirmed, f.providerID))

	evt := booking.TransitionEvent{
		Type:        booking.EventBookingStatusChanged,
		AuditAction: booking.AuditBookingConfirmed,
		ActorID:     f.providerID,
		After:       f.booking.Snapshot(),
		OccurredAt:  time.Now().UTC(),
	}
	f.dispatcher.Dispatch(context.Background(), evt)

	require.Len(t, f.mailer.sent, 2)
	assert.Contains(t, f.mailer.sent[0].Subject, "confirmed")
	assert.Contains(t, f.mailer.sent[1].Subject, "confirmed")
	assert.Contains(t, f.mailer.sent[0].Body, "confirmed")
}

func TestDispatch_LedgerWriteFailureIsSwallowed(t *testing.T) {
	f := newDispatcherFixture(t)
	f.ledger.err = errors.New("database unavailable")

	// Must not panic; the failure is logged only.
	f.dispatcher.Dispatch(context.Background(), createdEvent(f.booking))
	assert.Len(t, f.mailer.sent, 2)
}
