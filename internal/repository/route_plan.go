package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"example.com/eazyy/fulfillment/internal/db"
	"example.com/eazyy/fulfillment/internal/models"
)

// RoutePlanRepository defines the interface for persisted route plans.
// Plans are append-only; the newest row per driver and shift wins.
type RoutePlanRepository interface {
	Create(ctx context.Context, plan *models.RoutePlan) error
	Latest(ctx context.Context, driverID string, shift models.Date) (*models.RoutePlan, error)
}

type routePlanRepository struct {
	db *gorm.DB
}

// NewRoutePlanRepository creates a new route plan repository
func NewRoutePlanRepository(db *gorm.DB) RoutePlanRepository {
	return &routePlanRepository{db: db}
}

// Create appends a route plan
func (r *routePlanRepository) Create(ctx context.Context, plan *models.RoutePlan) error {
	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(plan).Error; err != nil {
		if isUndefinedTable(err) {
			return ErrNotProvisioned
		}
		return errors.Wrap(err, "failed to create route plan")
	}
	return nil
}

// Latest returns the newest plan for a driver and shift date
func (r *routePlanRepository) Latest(ctx context.Context, driverID string, shift models.Date) (*models.RoutePlan, error) {
	var plan models.RoutePlan
	err := r.db.WithContext(ctx).
		Where("driver_id = ? AND shift_date = ?", driverID, shift).
		Order("created_at DESC").
		First(&plan).Error
	if err != nil {
		if db.IsRecordNotFoundError(err) {
			return nil, ErrNotFound
		}
		if isUndefinedTable(err) {
			return nil, ErrNotProvisioned
		}
		return nil, errors.Wrap(err, "failed to load route plan")
	}
	return &plan, nil
}
