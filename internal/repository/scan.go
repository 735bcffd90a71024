package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"example.com/eazyy/fulfillment/internal/db"
	"example.com/eazyy/fulfillment/internal/models"
)

// ScanRepository defines the interface for the scan event log
type ScanRepository interface {
	Create(ctx context.Context, event *models.ScanEvent) error
	LatestAccepted(ctx context.Context, orderID uuid.UUID, kind models.ScanKind) (*models.ScanEvent, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.ScanEvent, error)
}

type scanRepository struct {
	db *gorm.DB
}

// NewScanRepository creates a new scan repository
func NewScanRepository(db *gorm.DB) ScanRepository {
	return &scanRepository{db: db}
}

// Create appends a scan event
func (r *scanRepository) Create(ctx context.Context, event *models.ScanEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return errors.Wrap(err, "failed to create scan event")
	}
	return nil
}

// LatestAccepted returns the newest successful, non-duplicate scan of the
// given kind for an order
func (r *scanRepository) LatestAccepted(ctx context.Context, orderID uuid.UUID, kind models.ScanKind) (*models.ScanEvent, error) {
	var event models.ScanEvent
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND type = ? AND success = ?", orderID, kind, true).
		Where("COALESCE((metadata->>'duplicate')::boolean, false) = false").
		Order("created_at DESC").
		First(&event).Error
	if err != nil {
		if db.IsRecordNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to load latest scan")
	}
	return &event, nil
}

// ListByOrder returns the scan history of an order, oldest first
func (r *scanRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.ScanEvent, error) {
	var events []models.ScanEvent
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list scan events")
	}
	return events, nil
}
