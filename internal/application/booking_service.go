package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	bookingDomain "github.com/slotable/service-booking/internal/domain/booking"
	"github.com/slotable/service-booking/internal/domain/catalog"
	"github.com/slotable/service-booking/internal/platform/auth"
	"github.com/slotable/service-booking/internal/platform/domain"
)

// CreateBookingRequest holds the data needed to create a new booking.
type CreateBookingRequest struct {
	ServiceID   uuid.UUID `json:"service_id" binding:"required"`
	ScheduledAt time.Time `json:"scheduled_at" binding:"required"`
	Note        string    `json:"note"`
}

// TransitionRequest asks for a status change, optionally updating the
// caller's own note field in the same write.
type TransitionRequest struct {
	TargetStatus string  `json:"target_status" binding:"required"`
	Note         *string `json:"note"`
}

// AnnotateRequest mutates note and schedule fields without a status change.
type AnnotateRequest struct {
	CustomerNote *string    `json:"customer_note"`
	ProviderNote *string    `json:"provider_note"`
	ScheduledAt  *time.Time `json:"scheduled_at"`
}

// BookingDTO is the response representation of a booking.
type BookingDTO struct {
	ID                 uuid.UUID                          `json:"id"`
	BookingNumber      string                             `json:"booking_number"`
	CustomerID         uuid.UUID                          `json:"customer_id"`
	ProviderID         uuid.UUID                          `json:"provider_id"`
	ServiceID          uuid.UUID                          `json:"service_id"`
	Status             string                             `json:"status"`
	ScheduledAt        time.Time                          `json:"scheduled_at"`
	AmountCents        int64                              `json:"amount_cents"`
	TotalAmountCents   int64                              `json:"total_amount_cents"`
	Currency           string                             `json:"currency"`
	CustomerNote       string                             `json:"customer_note,omitempty"`
	ProviderNote       string                             `json:"provider_note,omitempty"`
	StatusHistory      []bookingDomain.StatusHistoryEntry `json:"status_history"`
	NotificationLedger []bookingDomain.NotificationEntry  `json:"notification_ledger,omitempty"`
	LastTransitionAt   time.Time                          `json:"last_transition_at"`
	Version            int64                              `json:"version"`
	CreatedAt          time.Time                          `json:"created_at"`
	UpdatedAt          time.Time                          `json:"updated_at"`
}

// MutationResultDTO is the response for accepted mutations: the updated
// booking plus the typed change set, which is the same structure handed to
// the audit recorder.
type MutationResultDTO struct {
	Booking BookingDTO              `json:"booking"`
	Changes bookingDomain.ChangeSet `json:"changes,omitempty"`
}

// TransitionQueue accepts side-effect tasks for detached execution. Enqueue
// must never block the caller; a full queue drops the task with a logged
// error rather than delaying the response.
type TransitionQueue interface {
	Enqueue(evt bookingDomain.TransitionEvent)
}

// BookingService is the booking lifecycle controller. It validates requested
// transitions, applies them under optimistic concurrency and hands accepted
// mutations to the side-effect queue. Notification and audit run behind the
// queue and can neither block nor roll back the primary write.
type BookingService struct {
	repo     bookingDomain.Repository
	services catalog.Repository
	queue    TransitionQueue
	logger   *zap.Logger
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	repo bookingDomain.Repository,
	services catalog.Repository,
	queue TransitionQueue,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		repo:     repo,
		services: services,
		queue:    queue,
		logger:   logger,
	}
}

// CreateBooking creates a new booking for the acting customer. The price and
// owning provider are snapshotted from the catalog replica; later catalog
// price changes never alter existing bookings.
func (s *BookingService) CreateBooking(ctx context.Context, p auth.Principal, req CreateBookingRequest) (*MutationResultDTO, error) {
	if !p.Active {
		return nil, domain.NewForbiddenError("principal is inactive")
	}

	svc, err := s.services.FindByID(ctx, req.ServiceID)
	if err != nil {
		if domain.IsCode(err, domain.CodeNotFound) {
			return nil, domain.NewInvalidReferenceError(fmt.Sprintf("service %s does not exist", req.ServiceID))
		}
		return nil, err
	}
	if !svc.Active {
		return nil, domain.NewInvalidReferenceError(fmt.Sprintf("service %s is inactive", req.ServiceID))
	}

	bk, err := bookingDomain.NewBooking(
		p.ID,
		svc.ID,
		svc.ProviderID,
		svc.PriceCents,
		svc.PriceCents,
		svc.Currency,
		req.ScheduledAt.UTC(),
		req.Note,
	)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, bk); err != nil {
		return nil, fmt.Errorf("failed to save booking: %w", err)
	}

	changes := bookingDomain.ChangeSet{}.Add("status", "", string(bookingDomain.StatusPending))
	s.queue.Enqueue(bookingDomain.TransitionEvent{
		Type:        bookingDomain.EventBookingCreated,
		AuditAction: bookingDomain.AuditBookingCreated,
		ActorID:     p.ID,
		After:       bk.Snapshot(),
		Changes:     changes,
		OccurredAt:  time.Now().UTC(),
	})

	return &MutationResultDTO{Booking: toBookingDTO(bk), Changes: changes}, nil
}

// RequestTransition moves a booking to the target status on behalf of the
// acting principal. Requesting the booking's current status is an idempotent
// no-op so at-least-once client retries stay harmless.
func (s *BookingService) RequestTransition(ctx context.Context, p auth.Principal, bookingID uuid.UUID, target bookingDomain.BookingStatus, noteUpdate *string) (*MutationResultDTO, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if !bookingDomain.CanView(p, bk) {
		return nil, domain.NewForbiddenError("booking is not visible to this principal")
	}

	if target == bk.Status() {
		// No-op success: no history append, no side effects.
		return &MutationResultDTO{Booking: toBookingDTO(bk)}, nil
	}

	if bk.Status().IsTerminal() {
		return nil, domain.NewTerminalStateError(fmt.Sprintf("booking is %s and cannot change status", bk.Status()))
	}

	changeReq := bookingDomain.ChangeRequest{TargetStatus: &target}
	applyNote := s.bindNoteUpdate(&changeReq, p, noteUpdate)

	if decision := bookingDomain.Decide(p, bk, changeReq); !decision.Allowed {
		return nil, forbiddenFor(decision)
	}

	before := bk.Snapshot()
	if err := bk.TransitionTo(target, p.ID); err != nil {
		return nil, err
	}
	applyNote(bk)

	bk.IncrementVersion()
	if err := s.repo.Update(ctx, bk); err != nil {
		return nil, err
	}

	changes := bookingDomain.DiffBookings(before, bk)
	s.queue.Enqueue(bookingDomain.TransitionEvent{
		Type:        bookingDomain.EventBookingStatusChanged,
		AuditAction: bookingDomain.AuditActionFor(target),
		ActorID:     p.ID,
		Before:      before,
		After:       bk.Snapshot(),
		Changes:     changes,
		OccurredAt:  time.Now().UTC(),
	})

	return &MutationResultDTO{Booking: toBookingDTO(bk), Changes: changes}, nil
}

// CancelBooking is sugar over RequestTransition to cancelled. A booking
// already completed surfaces as a terminal-state error, not a generic
// authorization failure; a booking already cancelled is a no-op success.
func (s *BookingService) CancelBooking(ctx context.Context, p auth.Principal, bookingID uuid.UUID, noteUpdate *string) (*MutationResultDTO, error) {
	return s.RequestTransition(ctx, p, bookingID, bookingDomain.StatusCancelled, noteUpdate)
}

// Annotate mutates note and schedule fields without changing status. On
// terminal bookings only administrators may annotate, for record-keeping.
func (s *BookingService) Annotate(ctx context.Context, p auth.Principal, bookingID uuid.UUID, req AnnotateRequest) (*MutationResultDTO, error) {
	if req.CustomerNote == nil && req.ProviderNote == nil && req.ScheduledAt == nil {
		return nil, domain.NewValidationError("no fields to update")
	}

	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if !bookingDomain.CanView(p, bk) {
		return nil, domain.NewForbiddenError("booking is not visible to this principal")
	}

	changeReq := bookingDomain.ChangeRequest{
		CustomerNote: req.CustomerNote,
		ProviderNote: req.ProviderNote,
		ScheduledAt:  req.ScheduledAt,
	}
	if decision := bookingDomain.Decide(p, bk, changeReq); !decision.Allowed {
		return nil, forbiddenFor(decision)
	}

	before := bk.Snapshot()
	if req.CustomerNote != nil {
		bk.SetCustomerNote(*req.CustomerNote)
	}
	if req.ProviderNote != nil {
		bk.SetProviderNote(*req.ProviderNote)
	}
	if req.ScheduledAt != nil {
		if err := bk.Reschedule(req.ScheduledAt.UTC()); err != nil {
			return nil, err
		}
	}

	changes := bookingDomain.DiffBookings(before, bk)
	if len(changes) == 0 {
		return &MutationResultDTO{Booking: toBookingDTO(bk)}, nil
	}

	bk.IncrementVersion()
	if err := s.repo.Update(ctx, bk); err != nil {
		return nil, err
	}

	s.queue.Enqueue(bookingDomain.TransitionEvent{
		Type:        bookingDomain.EventBookingAnnotated,
		AuditAction: bookingDomain.AuditBookingAnnotated,
		ActorID:     p.ID,
		Before:      before,
		After:       bk.Snapshot(),
		Changes:     changes,
		OccurredAt:  time.Now().UTC(),
	})

	return &MutationResultDTO{Booking: toBookingDTO(bk), Changes: changes}, nil
}

// GetBooking retrieves a single booking, visible only to its customer, its
// provider, or an administrator.
func (s *BookingService) GetBooking(ctx context.Context, p auth.Principal, bookingID uuid.UUID) (*BookingDTO, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !bookingDomain.CanView(p, bk) {
		return nil, domain.NewForbiddenError("booking is not visible to this principal")
	}
	result := toBookingDTO(bk)
	return &result, nil
}

// ListBookings retrieves the paginated bookings visible to the principal:
// customers and providers see their own, administrators see all.
func (s *BookingService) ListBookings(ctx context.Context, p auth.Principal, page, limit int) (*domain.PaginatedResult[BookingDTO], error) {
	var (
		bookings []*bookingDomain.Booking
		total    int64
		err      error
	)

	switch {
	case p.Role.IsAdmin():
		bookings, total, err = s.repo.ListAll(ctx, page, limit)
	case p.Role == auth.RoleProvider:
		bookings, total, err = s.repo.FindByProviderID(ctx, p.ID, page, limit)
	default:
		bookings, total, err = s.repo.FindByCustomerID(ctx, p.ID, page, limit)
	}
	if err != nil {
		return nil, err
	}

	dtos := make([]BookingDTO, len(bookings))
	for i, bk := range bookings {
		dtos[i] = toBookingDTO(bk)
	}

	result := domain.NewPaginatedResult(dtos, total, page, limit)
	return &result, nil
}

// PollChangedBookings returns the principal's visible bookings whose last
// status change happened at or after the cursor. Dashboards use it for
// incremental refresh without a push channel.
func (s *BookingService) PollChangedBookings(ctx context.Context, p auth.Principal, since time.Time) ([]BookingDTO, error) {
	scope := bookingDomain.ChangeScope{}
	switch {
	case p.Role.IsAdmin():
		// Unscoped.
	case p.Role == auth.RoleProvider:
		id := p.ID
		scope.ProviderID = &id
	default:
		id := p.ID
		scope.CustomerID = &id
	}

	bookings, err := s.repo.FindChangedSince(ctx, since.UTC(), scope)
	if err != nil {
		return nil, err
	}

	dtos := make([]BookingDTO, len(bookings))
	for i, bk := range bookings {
		dtos[i] = toBookingDTO(bk)
	}
	return dtos, nil
}

// --- Admin methods ---

// BookingStatsDTO holds booking statistics for the admin dashboard.
type BookingStatsDTO struct {
	TotalBookings int64            `json:"total_bookings"`
	ByStatus      map[string]int64 `json:"by_status"`
}

// ListAllBookings returns a paginated list of all bookings (admin).
func (s *BookingService) ListAllBookings(ctx context.Context, page, limit int) ([]BookingDTO, int64, error) {
	bookings, total, err := s.repo.ListAll(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}

	dtos := make([]BookingDTO, len(bookings))
	for i, bk := range bookings {
		dtos[i] = toBookingDTO(bk)
	}
	return dtos, total, nil
}

// GetBookingStats returns aggregate booking statistics (admin).
func (s *BookingService) GetBookingStats(ctx context.Context) (*BookingStatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking stats: %w", err)
	}

	var total int64
	for _, c := range counts {
		total += c
	}

	return &BookingStatsDTO{
		TotalBookings: total,
		ByStatus:      counts,
	}, nil
}

// --- Helpers ---

// bindNoteUpdate routes a transition's note update to the acting role's own
// note field and returns the mutation to apply once the gate has allowed it.
// Administrators annotate the provider-facing note.
func (s *BookingService) bindNoteUpdate(changeReq *bookingDomain.ChangeRequest, p auth.Principal, noteUpdate *string) func(*bookingDomain.Booking) {
	if noteUpdate == nil {
		return func(*bookingDomain.Booking) {}
	}

	if p.Role == auth.RoleCustomer {
		changeReq.CustomerNote = noteUpdate
		return func(bk *bookingDomain.Booking) { bk.SetCustomerNote(*noteUpdate) }
	}
	changeReq.ProviderNote = noteUpdate
	return func(bk *bookingDomain.Booking) { bk.SetProviderNote(*noteUpdate) }
}

func forbiddenFor(decision bookingDomain.Decision) error {
	if decision.Reason == bookingDomain.ReasonInactivePrincipal {
		return domain.NewForbiddenError("principal is inactive")
	}
	return domain.NewForbiddenError("insufficient role for requested change")
}

func toBookingDTO(bk *bookingDomain.Booking) BookingDTO {
	return BookingDTO{
		ID:                 bk.ID(),
		BookingNumber:      bk.BookingNumber(),
		CustomerID:         bk.CustomerID(),
		ProviderID:         bk.ProviderID(),
		ServiceID:          bk.ServiceID(),
		Status:             string(bk.Status()),
		ScheduledAt:        bk.ScheduledAt(),
		AmountCents:        bk.AmountCents(),
		TotalAmountCents:   bk.TotalAmountCents(),
		Currency:           bk.Currency(),
		CustomerNote:       bk.CustomerNote(),
		ProviderNote:       bk.ProviderNote(),
		StatusHistory:      bk.StatusHistory(),
		NotificationLedger: bk.NotificationLedger(),
		LastTransitionAt:   bk.LastTransitionAt(),
		Version:            bk.Version(),
		CreatedAt:          bk.CreatedAt(),
		UpdatedAt:          bk.UpdatedAt(),
	}
}
