package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"example.com/eazyy/fulfillment/internal/db"
	"example.com/eazyy/fulfillment/internal/models"
)

// DeliveryRepository defines the interface for proof-of-delivery records
type DeliveryRepository interface {
	Create(ctx context.Context, pod *models.ProofOfDelivery) (bool, error)
	GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.ProofOfDelivery, error)
}

type deliveryRepository struct {
	db *gorm.DB
}

// NewDeliveryRepository creates a new proof-of-delivery repository
func NewDeliveryRepository(db *gorm.DB) DeliveryRepository {
	return &deliveryRepository{db: db}
}

// Create stores a proof of delivery. A second proof for the same order is
// ignored; the returned bool reports whether a row was written.
func (r *deliveryRepository) Create(ctx context.Context, pod *models.ProofOfDelivery) (bool, error) {
	if pod.ID == uuid.Nil {
		pod.ID = uuid.New()
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "order_id"}}, DoNothing: true}).
		Create(pod)
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "failed to create proof of delivery")
	}
	return res.RowsAffected > 0, nil
}

// GetByOrder returns the proof of delivery recorded for an order
func (r *deliveryRepository) GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.ProofOfDelivery, error) {
	var pod models.ProofOfDelivery
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&pod).Error; err != nil {
		if db.IsRecordNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to load proof of delivery")
	}
	return &pod, nil
}
