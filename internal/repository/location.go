package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"example.com/eazyy/fulfillment/internal/db"
	"example.com/eazyy/fulfillment/internal/models"
)

// LocationRepository defines the interface for driver location pings
type LocationRepository interface {
	Create(ctx context.Context, ping *models.DriverLocationPing) error
	Latest(ctx context.Context, driverID string) (*models.DriverLocationPing, error)
}

type locationRepository struct {
	db *gorm.DB
}

// NewLocationRepository creates a new location repository
func NewLocationRepository(db *gorm.DB) LocationRepository {
	return &locationRepository{db: db}
}

// Create appends a location ping
func (r *locationRepository) Create(ctx context.Context, ping *models.DriverLocationPing) error {
	if ping.ID == uuid.Nil {
		ping.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(ping).Error; err != nil {
		return errors.Wrap(err, "failed to create location ping")
	}
	return nil
}

// Latest returns the most recently recorded ping of a driver
func (r *locationRepository) Latest(ctx context.Context, driverID string) (*models.DriverLocationPing, error) {
	var ping models.DriverLocationPing
	err := r.db.WithContext(ctx).
		Where("driver_id = ?", driverID).
		Order("recorded_at DESC").
		First(&ping).Error
	if err != nil {
		if db.IsRecordNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to load latest location")
	}
	return &ping, nil
}
