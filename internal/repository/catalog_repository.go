package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/slotable/service-booking/internal/domain/catalog"
	"github.com/slotable/service-booking/internal/platform/domain"
)

// ServiceModel is the GORM model for the catalog replica table.
type ServiceModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProviderID uuid.UUID `gorm:"type:uuid;index;not null"`
	Name       string    `gorm:"not null;size:200"`
	PriceCents int64     `gorm:"not null"`
	Currency   string    `gorm:"not null;size:3;default:'USD'"`
	Active     bool      `gorm:"not null;default:true"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (ServiceModel) TableName() string {
	return "catalog_services"
}

// GormCatalogRepository is the GORM-based implementation of catalog.Repository.
type GormCatalogRepository struct {
	db *gorm.DB
}

// NewGormCatalogRepository creates a new GormCatalogRepository.
func NewGormCatalogRepository(db *gorm.DB) *GormCatalogRepository {
	return &GormCatalogRepository{db: db}
}

// FindByID retrieves a replicated service by ID.
func (r *GormCatalogRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Service, error) {
	var model ServiceModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Service", id.String())
		}
		return nil, fmt.Errorf("failed to find service by ID: %w", err)
	}

	return &catalog.Service{
		ID:         model.ID,
		ProviderID: model.ProviderID,
		Name:       model.Name,
		PriceCents: model.PriceCents,
		Currency:   model.Currency,
		Active:     model.Active,
		UpdatedAt:  model.UpdatedAt,
	}, nil
}

// Upsert inserts or replaces a replicated service.
func (r *GormCatalogRepository) Upsert(ctx context.Context, svc *catalog.Service) error {
	model := ServiceModel{
		ID:         svc.ID,
		ProviderID: svc.ProviderID,
		Name:       svc.Name,
		PriceCents: svc.PriceCents,
		Currency:   svc.Currency,
		Active:     svc.Active,
		UpdatedAt:  svc.UpdatedAt,
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to upsert service: %w", err)
	}
	return nil
}

// Deactivate marks a replicated service inactive.
func (r *GormCatalogRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&ServiceModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"active": false, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return fmt.Errorf("failed to deactivate service: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("Service", id.String())
	}
	return nil
}
