package service

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"example.com/eazyy/fulfillment/internal/metrics"
	"example.com/eazyy/fulfillment/internal/models"
	"example.com/eazyy/fulfillment/internal/repository"
)

// LocationRequest is a GPS sample reported by a driver device
type LocationRequest struct {
	DriverID   string
	Lat        *float64
	Lng        *float64
	Heading    *float64
	Speed      *float64
	RecordedAt *time.Time
}

// LocationService ingests driver location pings
type LocationService struct {
	store   repository.Store
	clock   Clock
	metrics *metrics.Collector
}

// NewLocationService creates a location service
func NewLocationService(store repository.Store, clock Clock) *LocationService {
	return &LocationService{store: store, clock: clock, metrics: metrics.GetCollector()}
}

// ReportLocation appends a location ping
func (s *LocationService) ReportLocation(ctx context.Context, req LocationRequest) error {
	driverID := strings.TrimSpace(req.DriverID)
	switch {
	case driverID == "":
		return BadRequest("driver_id is required")
	case req.Lat == nil:
		return BadRequest("lat is required")
	case req.Lng == nil:
		return BadRequest("lng is required")
	case *req.Lat < -90 || *req.Lat > 90:
		return BadRequest("lat must be between -90 and 90")
	case *req.Lng < -180 || *req.Lng > 180:
		return BadRequest("lng must be between -180 and 180")
	}

	now := s.clock.Now()
	recordedAt := now
	if req.RecordedAt != nil && !req.RecordedAt.IsZero() {
		recordedAt = *req.RecordedAt
	}

	ping := &models.DriverLocationPing{
		DriverID:   driverID,
		Lat:        *req.Lat,
		Lng:        *req.Lng,
		Heading:    req.Heading,
		Speed:      req.Speed,
		RecordedAt: recordedAt,
		CreatedAt:  now,
	}
	if err := s.store.Locations().Create(ctx, ping); err != nil {
		return Internal(err, "failed to record location")
	}
	s.metrics.IncrementCounter(metrics.CounterLocationPings, 1)
	return nil
}

// LatestLocation returns the most recently recorded ping of a driver
func (s *LocationService) LatestLocation(ctx context.Context, driverID string) (*models.DriverLocationPing, error) {
	driverID = strings.TrimSpace(driverID)
	if driverID == "" {
		return nil, BadRequest("driver_id is required")
	}
	ping, err := s.store.Locations().Latest(ctx, driverID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFound("no location reported for driver %s", driverID)
		}
		return nil, Internal(err, "failed to load location")
	}
	return ping, nil
}
