package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/slotable/service-booking/internal/application"
	"github.com/slotable/service-booking/internal/domain/booking"
	"github.com/slotable/service-booking/internal/domain/catalog"
	"github.com/slotable/service-booking/internal/platform/auth"
	"github.com/slotable/service-booking/internal/platform/domain"
)

// fakeBookingRepo is an in-memory booking.Repository with the same
// version-compare-and-swap semantics as the real one. Reads hand out
// independent snapshots so a stale read can lose an update race.
type fakeBookingRepo struct {
	store map[uuid.UUID]*booking.Booking

	// findOverride, when set, is returned by the next FindByID call. Used
	// to simulate a concurrent writer racing on a stale snapshot.
	findOverride *booking.Booking
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{store: make(map[uuid.UUID]*booking.Booking)}
}

func (r *fakeBookingRepo) FindByID(_ context.Context, id uuid.UUID) (*booking.Booking, error) {
	if r.findOverride != nil {
		bk := r.findOverride
		r.findOverride = nil
		return bk.Snapshot(), nil
	}
	bk, ok := r.store[id]
	if !ok {
		return nil, domain.NewNotFoundError("Booking", id.String())
	}
	return bk.Snapshot(), nil
}

func (r *fakeBookingRepo) FindByCustomerID(_ context.Context, customerID uuid.UUID, _, _ int) ([]*booking.Booking, int64, error) {
	var out []*booking.Booking
	for _, bk := range r.store {
		if bk.CustomerID() == customerID {
			out = append(out, bk.Snapshot())
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeBookingRepo) FindByProviderID(_ context.Context, providerID uuid.UUID, _, _ int) ([]*booking.Booking, int64, error) {
	var out []*booking.Booking
	for _, bk := range r.store {
		if bk.ProviderID() == providerID {
			out = append(out, bk.Snapshot())
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeBookingRepo) FindChangedSince(_ context.Context, since time.Time, scope booking.ChangeScope) ([]*booking.Booking, error) {
	var out []*booking.Booking
	for _, bk := range r.store {
		if bk.LastTransitionAt().Before(since) {
			continue
		}
		if scope.CustomerID != nil && bk.CustomerID() != *scope.CustomerID {
			continue
		}
		if scope.ProviderID != nil && bk.ProviderID() != *scope.ProviderID {
			continue
		}
		out = append(out, bk.Snapshot())
	}
	return out, nil
}

func (r *fakeBookingRepo) ListAll(_ context.Context, _, _ int) ([]*booking.Booking, int64, error) {
	var out []*booking.Booking
	for _, bk := range r.store {
		out = append(out, bk.Snapshot())
	}
	return out, int64(len(out)), nil
}

func (r *fakeBookingRepo) CountByStatus(_ context.Context) (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, bk := range r.store {
		counts[string(bk.Status())]++
	}
	return counts, nil
}

func (r *fakeBookingRepo) Save(_ context.Context, bk *booking.Booking) error {
	r.store[bk.ID()] = bk.Snapshot()
	return nil
}

func (r *fakeBookingRepo) Update(_ context.Context, bk *booking.Booking) error {
	stored, ok := r.store[bk.ID()]
	if !ok {
		return domain.NewNotFoundError("Booking", bk.ID().String())
	}
	if stored.Version() != bk.Version()-1 {
		return domain.NewConflictError("booking was modified by another transaction")
	}
	r.store[bk.ID()] = bk.Snapshot()
	return nil
}

func (r *fakeBookingRepo) AppendNotificationEntry(_ context.Context, _ uuid.UUID, _ booking.NotificationEntry) error {
	return nil
}

type fakeCatalogRepo struct {
	services map[uuid.UUID]*catalog.Service
}

func (r *fakeCatalogRepo) FindByID(_ context.Context, id uuid.UUID) (*catalog.Service, error) {
	svc, ok := r.services[id]
	if !ok {
		return nil, domain.NewNotFoundError("Service", id.String())
	}
	return svc, nil
}

func (r *fakeCatalogRepo) Upsert(_ context.Context, svc *catalog.Service) error {
	r.services[svc.ID] = svc
	return nil
}

func (r *fakeCatalogRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	if svc, ok := r.services[id]; ok {
		svc.Active = false
	}
	return nil
}

// recordingQueue captures enqueued transition events.
type recordingQueue struct {
	events []booking.TransitionEvent
}

func (q *recordingQueue) Enqueue(evt booking.TransitionEvent) {
	q.events = append(q.events, evt)
}

type serviceFixture struct {
	svc      *application.BookingService
	repo     *fakeBookingRepo
	queue    *recordingQueue
	customer auth.Principal
	provider auth.Principal
	admin    auth.Principal
	service  *catalog.Service
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	providerID := uuid.New()
	catalogSvc := &catalog.Service{
		ID:         uuid.New(),
		ProviderID: providerID,
		Name:       "Deep Clean",
		PriceCents: 8000,
		Currency:   "USD",
		Active:     true,
		UpdatedAt:  time.Now().UTC(),
	}

	repo := newFakeBookingRepo()
	catalogRepo := &fakeCatalogRepo{services: map[uuid.UUID]*catalog.Service{catalogSvc.ID: catalogSvc}}
	queue := &recordingQueue{}

	return &serviceFixture{
		svc:      application.NewBookingService(repo, catalogRepo, queue, zap.NewNop()),
		repo:     repo,
		queue:    queue,
		customer: auth.Principal{ID: uuid.New(), Role: auth.RoleCustomer, Active: true},
		provider: auth.Principal{ID: providerID, Role: auth.RoleProvider, Active: true},
		admin:    auth.Principal{ID: uuid.New(), Role: auth.RoleAdmin, Active: true},
		service:  catalogSvc,
	}
}

func (f *serviceFixture) createBooking(t *testing.T) *application.MutationResultDTO {
	t.Helper()
	result, err := f.svc.CreateBooking(context.Background(), f.customer, application.CreateBookingRequest{
		ServiceID:   f.service.ID,
		ScheduledAt: time.Now().Add(48 * time.Hour).UTC(),
	})
	require.NoError(t, err)
	return result
}

func TestCreateBooking(t *testing.T) {
	f := newServiceFixture(t)

	result := f.createBooking(t)

	assert.Equal(t, "pending", result.Booking.Status)
	assert.Equal(t, f.customer.ID, result.Booking.CustomerID)
	assert.Equal(t, f.provider.ID, result.Booking.ProviderID)
	assert.Equal(t, int64(8000), result.Booking.AmountCents)
	assert.Equal(t, "USD", result.Booking.Currency)
	assert.Equal(t, int64(1), result.Booking.Version)

	require.Len(t, f.queue.events, 1)
	assert.Equal(t, booking.EventBookingCreated, f.queue.events[0].Type)
	assert.Equal(t, booking.AuditBookingCreated, f.queue.events[0].AuditAction)
	assert.Equal(t, f.customer.ID, f.queue.events[0].ActorID)
}

func TestCreateBooking_PriceSnapshotIsolation(t *testing.T) {
	f := newServiceFixture(t)
	result := f.createBooking(t)

	// A later catalog price change never alters an existing booking.
	f.service.PriceCents = 12000

	dto, err := f.svc.GetBooking(context.Background(), f.customer, result.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(8000), dto.AmountCents)
}

func TestCreateBooking_UnknownService(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.CreateBooking(context.Background(), f.customer, application.CreateBookingRequest{
		ServiceID:   uuid.New(),
		ScheduledAt: time.Now().Add(time.Hour),
	})
	require.Error(t, err)
	assert.Equal(t, domain.CodeInvalidReference, domain.CodeOf(err))
	assert.Empty(t, f.queue.events)
}

func TestCreateBooking_InactiveService(t *testing.T) {
	f := newServiceFixture(t)
	f.service.Active = false

	_, err := f.svc.CreateBooking(context.Background(), f.customer, application.CreateBookingRequest{
		ServiceID:   f.service.ID,
		ScheduledAt: time.Now().Add(time.Hour),
	})
	require.Error(t, err)
	assert.Equal(t, domain.CodeInvalidReference, domain.CodeOf(err))
}

func TestCreateBooking_InactivePrincipal(t *testing.T) {
	f := newServiceFixture(t)
	inactive := f.customer
	inactive.Active = false

	_, err := f.svc.CreateBooking(context.Background(), inactive, application.CreateBookingRequest{
		ServiceID:   f.service.ID,
		ScheduledAt: time.Now().Add(time.Hour),
	})
	require.Error(t, err)
	assert.Equal(t, domain.CodeForbidden, domain.CodeOf(err))
}

func TestRequestTransition_ProviderConfirms(t *testing.T) {
	f := newServiceFixture(t)
	created := f.createBooking(t)

	result, err := f.svc.RequestTransition(context.Background(), f.provider, created.Booking.ID, booking.StatusConfirmed, nil)
	require.NoError(t, err)

	assert.Equal(t, "confirmed", result.Booking.Status)
	assert.Equal(t, int64(2), result.Booking.Version)
	require.Len(t, result.Booking.StatusHistory, 2)
	assert.Equal(t, f.provider.ID, result.Booking.StatusHistory[1].ChangedBy)

	require.Len(t, result.Changes, 1)
	assert.Equal(t, "status", result.Changes[0].Field)
	assert.Equal(t, "pending", result.Changes[0].Before)
	assert.Equal(t, "confirmed", result.Changes[0].After)

	require.Len(t, f.queue.events, 2)
	evt := f.queue.events[1]
	assert.Equal(t, booking.EventBookingStatusChanged, evt.Type)
	assert.Equal(t, booking.AuditBookingConfirmed, evt.AuditAction)
	assert.Equal(t, booking.StatusPending, evt.Before.Status())
	assert.Equal(t, booking.StatusConfirmed, evt.After.Status())
}

func TestRequestTransition_SameStatusIsNoOp(t *testing.T) {
	f := newServiceFixture(t)
	created := f.createBooking(t)

	_, err := f.svc.RequestTransition(context.Background(), f.provider, created.Booking.ID, booking.StatusConfirmed, nil)
	require.NoError(t, err)
	eventsBefore := len(f.queue.events)

	// The customer may not confirm, but requesting the current status is an
	// idempotent no-op and succeeds before the gate is consulted.
	result, err := f.svc.RequestTransition(context.Background(), f.customer, created.Booking.ID, booking.StatusConfirmed, nil)
	require.NoError(t, err)
	assert.Equal(t, "confirmed", result.Booking.Status)
	assert.Equal(t, int64(2), result.Booking.Version)
	assert.Len(t, result.Booking.StatusHistory, 2)
	assert.Empty(t, result.Changes)
	assert.Len(t, f.queue.events, eventsBefore)
}

func TestRequestTransition_CustomerCannotComplete(t *testing.T) {
	f := newServiceFixture(t)
	created := f.createBooking(t)

	_, err := f.svc.RequestTransition(context.Background(), f.customer, created.Booking.ID, booking.StatusCompleted, nil)
	require.Error(t, err)
	assert.Equal(t, domain.CodeForbidden, domain.CodeOf(err))
}

func TestRequestTransition_TerminalBeatsAuthorization(t *testing.T) {
	f := newServiceFixture(t)
	created := f.createBooking(t)

	_, err := f.svc.CancelBooking(context.Background(), f.customer, created.Booking.ID, nil)
	require.NoError(t, err)

	// Even an administrator gets the terminal-state error, not a generic
	// authorization failure.
	_, err = f.svc.RequestTransition(context.Background(), f.admin, created.Booking.ID, booking.StatusConfirmed, nil)
	require.Error(t, err)
	assert.Equal(t, domain.CodeTerminalState, domain.CodeOf(err))
}

func TestRequestTransition_NotFound(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.RequestTransition(context.Background(), f.admin, uuid.New(), booking.StatusConfirmed, nil)
	require.Error(t, err)
	assert.Equal(t, domain.CodeNotFound, domain.CodeOf(err))
}

func TestRequestTransition_InvisibleBooking(t *testing.T) {
	f := newServiceFixture(t)
	created := f.createBooking(t)
	stranger := auth.Principal{ID: uuid.New(), Role: auth.RoleCustomer, Active: true}

	_, err := f.svc.RequestTransition(context.Background(), stranger, created.Booking.ID, booking.StatusCancelled, nil)
	require.Error(t, err)
	assert.Equal(t, domain.CodeForbidden, domain.CodeOf(err))
}

func TestRequestTransition_NoteBindsToActorRole(t *testing.T) {
	f := newServiceFixture(t)
	created := f.createBooking(t)

	note := "see you at 9"
	result, err := f.svc.RequestTransition(context.Background(), f.provider, created.Booking.ID, booking.StatusConfirmed, &note)
	require.NoError(t, err)
	assert.Equal(t, note, result.Booking.ProviderNote)
	assert.Empty(t, result.Booking.CustomerNote)

	cancelNote := "plans changed"
	result, err = f.svc.CancelBooking(context.Background(), f.customer, created.Booking.ID, &cancelNote)
	require.NoError(t, err)
	assert.Equal(t, cancelNote, result.Booking.CustomerNote)
	assert.Equal(t, note, result.Booking.ProviderNote)
}

func TestRequestTransition_ConcurrentLoserConflicts(t *testing.T) {
	f := newServiceFixture(t)
	created := f.createBooking(t)

	// Capture the pending snapshot, then let the provider's confirmation win.
	stale, err := f.repo.FindByID(context.Background(), created.Booking.ID)
	require.NoError(t, err)

	_, err = f.svc.RequestTransition(context.Background(), f.provider, created.Booking.ID, booking.StatusConfirmed, nil)
	require.NoError(t, err)
	eventsAfterWinner := len(f.queue.events)

	// The customer's cancellation raced on the stale pending snapshot and
	// must surface as a conflict, never a silent overwrite.
	f.repo.findOverride = stale
	_, err = f.svc.CancelBooking(context.Background(), f.customer, created.Booking.ID, nil)
	require.Error(t, err)
	assert.Equal(t, domain.CodeConflict, domain.CodeOf(err))

	// No side effects for the loser; the winner's write is intact.
	assert.Len(t, f.queue.events, eventsAfterWinner)
	dto, err := f.svc.GetBooking(context.Background(), f.admin, created.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, "confirmed", dto.Status)
	assert.Equal(t, int64(2), dto.Version)
}

func TestAnnotate(t *testing.T) {
	f := newServiceFixture(t)
	created := f.createBooking(t)

	note := "gate code is 4421"
	result, err := f.svc.Annotate(context.Background(), f.customer, created.Booking.ID, application.AnnotateRequest{
		CustomerNote: &note,
	})
	require.NoError(t, err)
	assert.Equal(t, note, result.Booking.CustomerNote)
	assert.Equal(t, "pending", result.Booking.Status)
	assert.Equal(t, int64(2), result.Booking.Version)

	require.Len(t, result.Changes, 1)
	assert.Equal(t, "customer_note", result.Changes[0].Field)

	evt := f.queue.events[len(f.queue.events)-1]
	assert.Equal(t, booking.EventBookingAnnotated, evt.Type)
	assert.Equal(t, booking.AuditBookingAnnotated, evt.AuditAction)
}

func TestAnnotate_NoFields(t *testing.T) {
	f := newServiceFixture(t)
	created := f.createBooking(t)

	_, err := f.svc.Annotate(context.Background(), f.customer, created.Booking.ID, application.AnnotateRequest{})
	require.Error(t, err)
	assert.Equal(t, domain.CodeValidation, domain.CodeOf(err))
}

func TestAnnotate_UnchangedValueSkipsWrite(t *testing.T) {
	f := newServiceFixture(t)
	created := f.createBooking(t)
	eventsBefore := len(f.queue.events)

	empty := ""
	result, err := f.svc.Annotate(context.Background(), f.customer, created.Booking.ID, application.AnnotateRequest{
		CustomerNote: &empty,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Booking.Version)
	assert.Empty(t, result.Changes)
	assert.Len(t, f.queue.events, eventsBefore)
}

func TestAnnotate_TerminalBookingAdminOnly(t *testing.T) {
	f := newServiceFixture(t)
	created := f.createBooking(t)
	_, err := f.svc.CancelBooking(context.Background(), f.customer, created.Booking.ID, nil)
	require.NoError(t, err)

	note := "refund issued"
	_, err = f.svc.Annotate(context.Background(), f.provider, created.Booking.ID, application.AnnotateRequest{
		ProviderNote: &note,
	})
	require.Error(t, err)
	assert.Equal(t, domain.CodeForbidden, domain.CodeOf(err))

	result, err := f.svc.Annotate(context.Background(), f.admin, created.Booking.ID, application.AnnotateRequest{
		ProviderNote: &note,
	})
	require.NoError(t, err)
	assert.Equal(t, note, result.Booking.ProviderNote)
	assert.Equal(t, "cancelled", result.Booking.Status)
}

func TestGetBooking_Visibility(t *testing.T) {
	f := newServiceFixture(t)
	created := f.createBooking(t)
	stranger := auth.Principal{ID: uuid.New(), Role: auth.RoleProvider, Active: true}

	_, err := f.svc.GetBooking(context.Background(), f.customer, created.Booking.ID)
	require.NoError(t, err)

	_, err = f.svc.GetBooking(context.Background(), stranger, created.Booking.ID)
	require.Error(t, err)
	assert.Equal(t, domain.CodeForbidden, domain.CodeOf(err))
}

func TestListBookings_RoleScoped(t *testing.T) {
	f := newServiceFixture(t)
	f.createBooking(t)

	otherCustomer := auth.Principal{ID: uuid.New(), Role: auth.RoleCustomer, Active: true}

	result, err := f.svc.ListBookings(context.Background(), f.customer, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Total)

	result, err = f.svc.ListBookings(context.Background(), otherCustomer, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.Total)

	result, err = f.svc.ListBookings(context.Background(), f.provider, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Total)

	result, err = f.svc.ListBookings(context.Background(), f.admin, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Total)
}

func TestPollChangedBookings(t *testing.T) {
	f := newServiceFixture(t)
	created := f.createBooking(t)

	cursor := time.Now().Add(-time.Minute).UTC()

	dtos, err := f.svc.PollChangedBookings(context.Background(), f.customer, cursor)
	require.NoError(t, err)
	require.Len(t, dtos, 1)
	assert.Equal(t, created.Booking.ID, dtos[0].ID)

	// A cursor past the last transition returns nothing.
	dtos, err = f.svc.PollChangedBookings(context.Background(), f.customer, time.Now().Add(time.Minute).UTC())
	require.NoError(t, err)
	assert.Empty(t, dtos)

	// Other customers never see the booking in their change feed.
	other := auth.Principal{ID: uuid.New(), Role: auth.RoleCustomer, Active: true}
	dtos, err = f.svc.PollChangedBookings(context.Background(), other, cursor)
	require.NoError(t, err)
	assert.Empty(t, dtos)
}

func TestGetBookingStats(t *testing.T) {
	f := newServiceFixture(t)
	first := f.createBooking(t)
	f.createBooking(t)

	_, err := f.svc.RequestTransition(context.Background(), f.provider, first.Booking.ID, booking.StatusConfirmed, nil)
	require.NoError(t, err)

	stats, err := f.svc.GetBookingStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalBookings)
	assert.Equal(t, int64(1), stats.ByStatus["pending"])
	assert.Equal(t, int64(1), stats.ByStatus["confirmed"])
}
