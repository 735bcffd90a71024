package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"example.com/eazyy/fulfillment/internal/models"
)

// AssignmentRepository reads driver assignments. Assignments are managed
// outside this service.
type AssignmentRepository interface {
	Exists(ctx context.Context, driverID string, orderID uuid.UUID, shift models.Date) (bool, error)
	ListForDriver(ctx context.Context, driverID string, shift models.Date) ([]models.DriverAssignment, error)
	ListDrivers(ctx context.Context, shift models.Date) ([]string, error)
}

type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository creates a new assignment repository
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func wrapAssignmentErr(err error, msg string) error {
	if isUndefinedTable(err) {
		return ErrNotProvisioned
	}
	return errors.Wrap(err, msg)
}

// Exists reports whether the driver holds any assignment for the order on
// the shift date
func (r *assignmentRepository) Exists(ctx context.Context, driverID string, orderID uuid.UUID, shift models.Date) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.DriverAssignment{}).
		Where("driver_id = ? AND order_id = ? AND shift_date = ?", driverID, orderID, shift).
		Count(&count).Error
	if err != nil {
		return false, wrapAssignmentErr(err, "failed to check driver assignment")
	}
	return count > 0, nil
}

// ListForDriver returns the driver's assignments for the shift ordered by
// sequence
func (r *assignmentRepository) ListForDriver(ctx context.Context, driverID string, shift models.Date) ([]models.DriverAssignment, error) {
	var assignments []models.DriverAssignment
	err := r.db.WithContext(ctx).
		Where("driver_id = ? AND shift_date = ?", driverID, shift).
		Order("sequence ASC").
		Find(&assignments).Error
	if err != nil {
		return nil, wrapAssignmentErr(err, "failed to list driver assignments")
	}
	return assignments, nil
}

// ListDrivers returns the distinct drivers holding assignments on the shift
func (r *assignmentRepository) ListDrivers(ctx context.Context, shift models.Date) ([]string, error) {
	var drivers []string
	err := r.db.WithContext(ctx).
		Model(&models.DriverAssignment{}).
		Where("shift_date = ?", shift).
		Distinct().
		Order("driver_id").
		Pluck("driver_id", &drivers).Error
	if err != nil {
		return nil, wrapAssignmentErr(err, "failed to list assigned drivers")
	}
	return drivers, nil
}
