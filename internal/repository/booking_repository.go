package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	bookingDomain "github.com/slotable/service-booking/internal/domain/booking"
	"github.com/slotable/service-booking/internal/platform/domain"
)

// BookingModel is the GORM model for the bookings table.
type BookingModel struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey"`
	BookingNumber      string          `gorm:"uniqueIndex;not null;size:20"`
	CustomerID         uuid.UUID       `gorm:"type:uuid;index;not null"`
	ProviderID         uuid.UUID       `gorm:"type:uuid;index;not null"`
	ServiceID          uuid.UUID       `gorm:"type:uuid;index;not null"`
	Status             string          `gorm:"not null;size:20;index"`
	ScheduledAt        time.Time       `gorm:"not null"`
	AmountCents        int64           `gorm:"not null"`
	TotalAmountCents   int64           `gorm:"not null"`
	Currency           string          `gorm:"not null;size:3;default:'USD'"`
	CustomerNote       string          `gorm:"size:1000"`
	ProviderNote       string          `gorm:"size:1000"`
	StatusHistory      json.RawMessage `gorm:"type:jsonb;not null"`
	NotificationLedger json.RawMessage `gorm:"type:jsonb"`
	LastTransitionAt   time.Time       `gorm:"not null;index"`
	Version            int64           `gorm:"not null;default:1"`
	CreatedAt          time.Time       `gorm:"not null"`
	UpdatedAt          time.Time       `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (BookingModel) TableName() string {
	return "bookings"
}

// GormBookingRepository is the GORM-based implementation of booking.Repository.
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a new GormBookingRepository.
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// FindByID retrieves a booking by its unique identifier.
func (r *GormBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Booking", id.String())
		}
		return nil, fmt.Errorf("failed to find booking by ID: %w", err)
	}
	return toDomainBooking(&model)
}

// FindByCustomerID retrieves bookings for a specific customer with pagination.
func (r *GormBookingRepository) FindByCustomerID(ctx context.Context, customerID uuid.UUID, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.findPage(ctx, "customer_id = ?", []interface{}{customerID}, page, limit)
}

// FindByProviderID retrieves bookings owned by a specific provider with pagination.
func (r *GormBookingRepository) FindByProviderID(ctx context.Context, providerID uuid.UUID, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.findPage(ctx, "provider_id = ?", []interface{}{providerID}, page, limit)
}

// ListAll retrieves all bookings with pagination (admin).
func (r *GormBookingRepository) ListAll(ctx context.Context, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.findPage(ctx, "", nil, page, limit)
}

func (r *GormBookingRepository) findPage(ctx context.Context, cond string, args []interface{}, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	query := r.db.WithContext(ctx).Model(&BookingModel{})
	if cond != "" {
		query = query.Where(cond, args...)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	var models []BookingModel
	offset := (page - 1) * limit
	if err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}

	bookings := make([]*bookingDomain.Booking, len(models))
	for i, m := range models {
		bk, err := toDomainBooking(&m)
		if err != nil {
			return nil, 0, err
		}
		bookings[i] = bk
	}
	return bookings, total, nil
}

// FindChangedSince retrieves bookings whose last transition happened at or
// after the cursor, scoped to the caller's visible set.
func (r *GormBookingRepository) FindChangedSince(ctx context.Context, since time.Time, scope bookingDomain.ChangeScope) ([]*bookingDomain.Booking, error) {
	query := r.db.WithContext(ctx).Where("last_transition_at >= ?", since)
	if scope.CustomerID != nil {
		query = query.Where("customer_id = ?", *scope.CustomerID)
	}
	if scope.ProviderID != nil {
		query = query.Where("provider_id = ?", *scope.ProviderID)
	}

	var models []BookingModel
	if err := query.Order("last_transition_at ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find changed bookings: %w", err)
	}

	bookings := make([]*bookingDomain.Booking, len(models))
	for i, m := range models {
		bk, err := toDomainBooking(&m)
		if err != nil {
			return nil, err
		}
		bookings[i] = bk
	}
	return bookings, nil
}

// CountByStatus returns booking counts grouped by status (admin).
func (r *GormBookingRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// Save persists a new booking.
func (r *GormBookingRepository) Save(ctx context.Context, bk *bookingDomain.Booking) error {
	model, err := toBookingModel(bk)
	if err != nil {
		return fmt.Errorf("failed to convert booking to model: %w", err)
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save booking: %w", err)
	}
	return nil
}

// Update persists changes to an existing booking with optimistic locking.
// Only the mutable fields are written; price and party references stay
// write-once at the persistence layer too.
func (r *GormBookingRepository) Update(ctx context.Context, bk *bookingDomain.Booking) error {
	model, err := toBookingModel(bk)
	if err != nil {
		return fmt.Errorf("failed to convert booking to model: %w", err)
	}

	// Optimistic locking: only update if the version matches (current version - 1 since IncrementVersion was called)
	expectedVersion := bk.Version() - 1
	result := r.db.WithContext(ctx).
		Model(&BookingModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"status":             model.Status,
			"scheduled_at":       model.ScheduledAt,
			"customer_note":      model.CustomerNote,
			"provider_note":      model.ProviderNote,
			"status_history":     model.StatusHistory,
			"last_transition_at": model.LastTransitionAt,
			"version":            model.Version,
			"updated_at":         model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update booking: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return domain.NewConflictError("booking was modified by another transaction")
	}

	return nil
}

// AppendNotificationEntry appends one ledger entry in place. The ledger is
// informational; the append bypasses the version lock so it can never race
// with a transition into a conflict.
func (r *GormBookingRepository) AppendNotificationEntry(ctx context.Context, bookingID uuid.UUID, entry bookingDomain.NotificationEntry) error {
	payload, err := json.Marshal([]bookingDomain.NotificationEntry{entry})
	if err != nil {
		return fmt.Errorf("failed to marshal ledger entry: %w", err)
	}

	result := r.db.WithContext(ctx).Exec(
		`UPDATE bookings SET notification_ledger = COALESCE(notification_ledger, '[]'::jsonb) || ?::jsonb WHERE id = ?`,
		string(payload), bookingID,
	)
	if result.Error != nil {
		return fmt.Errorf("failed to append ledger entry: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("Booking", bookingID.String())
	}
	return nil
}

// --- Conversion Helpers ---

func toBookingModel(bk *bookingDomain.Booking) (*BookingModel, error) {
	historyJSON, err := json.Marshal(bk.StatusHistory())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal status history: %w", err)
	}

	var ledgerJSON json.RawMessage
	if bk.NotificationLedger() != nil {
		ledgerJSON, err = json.Marshal(bk.NotificationLedger())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal notification ledger: %w", err)
		}
	}

	return &BookingModel{
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
		StatusHistory:      historyJSON,
		NotificationLedger: ledgerJSON,
		LastTransitionAt:   bk.LastTransitionAt(),
		Version:            bk.Version(),
		CreatedAt:          bk.CreatedAt(),
		UpdatedAt:          bk.UpdatedAt(),
	}, nil
}

func toDomainBooking(m *BookingModel) (*bookingDomain.Booking, error) {
	var history []bookingDomain.StatusHistoryEntry
	if err := json.Unmarshal(m.StatusHistory, &history); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status history: %w", err)
	}

	var ledger []bookingDomain.NotificationEntry
	if len(m.NotificationLedger) > 0 {
		if err := json.Unmarshal(m.NotificationLedger, &ledger); err != nil {
			return nil, fmt.Errorf("failed to unmarshal notification ledger: %w", err)
		}
	}

	status, err := bookingDomain.ParseBookingStatus(m.Status)
	if err != nil {
		return nil, err
	}

	return bookingDomain.ReconstructBooking(
		m.ID,
		m.BookingNumber,
		m.CustomerID,
		m.ProviderID,
		m.ServiceID,
		status,
		m.ScheduledAt,
		m.AmountCents,
		m.TotalAmountCents,
		m.Currency,
		m.CustomerNote,
		m.ProviderNote,
		history,
		ledger,
		m.LastTransitionAt,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}
