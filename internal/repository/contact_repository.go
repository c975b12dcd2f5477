package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/slotable/service-booking/internal/domain/identity"
	"github.com/slotable/service-booking/internal/platform/domain"
)

// ContactModel is the GORM model for the contact replica table.
type ContactModel struct {
	UserID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email       string    `gorm:"not null;size:254"`
	DisplayName string    `gorm:"size:200"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (ContactModel) TableName() string {
	return "user_contacts"
}

// GormContactRepository is the GORM-based implementation of identity.ContactRepository.
type GormContactRepository struct {
	db *gorm.DB
}

// NewGormContactRepository creates a new GormContactRepository.
func NewGormContactRepository(db *gorm.DB) *GormContactRepository {
	return &GormContactRepository{db: db}
}

// FindByUserID retrieves a contact by user ID.
func (r *GormContactRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*identity.Contact, error) {
	var model ContactModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Contact", userID.String())
		}
		return nil, fmt.Errorf("failed to find contact: %w", err)
	}

	return &identity.Contact{
		UserID:      model.UserID,
		Email:       model.Email,
		DisplayName: model.DisplayName,
		UpdatedAt:   model.UpdatedAt,
	}, nil
}

// Upsert inserts or replaces a contact.
func (r *GormContactRepository) Upsert(ctx context.Context, contact *identity.Contact) error {
	model := ContactModel{
		UserID:      contact.UserID,
		Email:       contact.Email,
		DisplayName: contact.DisplayName,
		UpdatedAt:   contact.UpdatedAt,
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to upsert contact: %w", err)
	}
	return nil
}
