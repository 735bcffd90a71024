package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"example.com/eazyy/fulfillment/internal/db"
	"example.com/eazyy/fulfillment/internal/models"
)

// OrderRepository defines the interface for order persistence
type OrderRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetByOrderNumber(ctx context.Context, number string) (*models.Order, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Order, error)
	ListRecent(ctx context.Context, limit int) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.OrderStatus) error
	MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) error
}

type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) first(query *gorm.DB) (*models.Order, error) {
	var order models.Order
	if err := query.First(&order).Error; err != nil {
		if db.IsRecordNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to load order")
	}
	return &order, nil
}

// GetByID finds an order by its primary key
func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

// GetByOrderNumber finds an order by its human-facing number
func (r *orderRepository) GetByOrderNumber(ctx context.Context, number string) (*models.Order, error) {
	return r.first(r.db.WithContext(ctx).Where("order_number = ?", number))
}

// LockByID loads an order and holds a row lock until the surrounding
// transaction ends
func (r *orderRepository) LockByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.first(r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
}

// ListByIDs loads the orders with the given ids in no particular order
func (r *orderRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Order, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var orders []models.Order
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&orders).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list orders")
	}
	return orders, nil
}

// ListRecent returns the most recently created orders, newest first
func (r *orderRepository) ListRecent(ctx context.Context, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list recent orders")
	}
	return orders, nil
}

// UpdateStatus moves an order from one status to another. It returns
// ErrStatusMismatch when the order is no longer in the from status.
func (r *orderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.OrderStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to update order status")
	}
	if res.RowsAffected == 0 {
		return ErrStatusMismatch
	}
	return nil
}

// MarkDelivered sets the terminal delivered status regardless of the
// current status
func (r *orderRepository) MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        models.StatusDelivered,
			"delivery_date": at,
		})
	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to mark order delivered")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
