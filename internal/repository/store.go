package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories and runs units of work in a transaction
type Store interface {
	Orders() OrderRepository
	Assignments() AssignmentRepository
	Scans() ScanRepository
	Deliveries() DeliveryRepository
	Locations() LocationRepository
	RoutePlans() RoutePlanRepository

	// Transaction runs fn against a Store bound to a single database
	// transaction. The transaction commits when fn returns nil.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

type store struct {
	db *gorm.DB
}

// NewStore creates a Store backed by gorm
func NewStore(db *gorm.DB) Store {
	return &store{db: db}
}

func (s *store) Orders() OrderRepository           { return NewOrderRepository(s.db) }
func (s *store) Assignments() AssignmentRepository { return NewAssignmentRepository(s.db) }
func (s *store) Scans() ScanRepository             { return NewScanRepository(s.db) }
func (s *store) Deliveries() DeliveryRepository    { return NewDeliveryRepository(s.db) }
func (s *store) Locations() LocationRepository     { return NewLocationRepository(s.db) }
func (s *store) RoutePlans() RoutePlanRepository   { return NewRoutePlanRepository(s.db) }

func (s *store) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&store{db: tx})
	})
}
