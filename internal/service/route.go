package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/eazyy/fulfillment/internal/metrics"
	"example.com/eazyy/fulfillment/internal/models"
	"example.com/eazyy/fulfillment/internal/repository"
	"example.com/eazyy/fulfillment/internal/tracing"
)

// DefaultFallbackStops is the number of recent orders used when a driver
// has no assignments
const DefaultFallbackStops = 3

// Warning codes attached to a plan that was built with reduced quality
const (
	WarningDirectionsUnavailable = "directions_unavailable"
	WarningPlanNotPersisted      = "plan_not_persisted"
)

// Warning describes a soft failure while planning a route
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RoutePlanResult is the route returned to the driver app
type RoutePlanResult struct {
	PlanID    *uuid.UUID    `json:"plan_id,omitempty"`
	DriverID  string        `json:"driver_id"`
	ShiftDate models.Date   `json:"shift_date"`
	Polyline  *string       `json:"polyline,omitempty"`
	Stops     []models.Stop `json:"stops"`
	Degraded  bool          `json:"degraded"`
	Warnings  []Warning     `json:"warnings,omitempty"`
}

// RoutePlanner assembles a driver's stops for the shift
type RoutePlanner struct {
	store         repository.Store
	clock         Clock
	directions    Directions
	cache         PlanCache
	fallbackStops int
	metrics       *metrics.Collector
}

// NewRoutePlanner creates a route planner. A nil directions client disables
// optimization; a nil cache disables plan caching.
func NewRoutePlanner(store repository.Store, clock Clock, directions Directions, cache PlanCache, fallbackStops int) *RoutePlanner {
	if fallbackStops <= 0 {
		fallbackStops = DefaultFallbackStops
	}
	return &RoutePlanner{
		store:         store,
		clock:         clock,
		directions:    directions,
		cache:         cache,
		fallbackStops: fallbackStops,
		metrics:       metrics.GetCollector(),
	}
}

// PlanRoute builds, optimizes when possible, and stores today's route for a
// driver. Only a failure to read assignments or orders fails the call.
func (p *RoutePlanner) PlanRoute(ctx context.Context, driverID string) (*RoutePlanResult, error) {
	driverID = strings.TrimSpace(driverID)
	if driverID == "" {
		return nil, BadRequest("driver_id is required")
	}

	shift := p.clock.ShiftDate()
	logger := log.With().Str("driver_id", driverID).Str("shift_date", string(shift)).Logger()

	result := &RoutePlanResult{DriverID: driverID, ShiftDate: shift}

	stops, err := p.assignedStops(ctx, driverID, shift)
	if err != nil {
		return nil, Internal(err, "failed to load driver assignments")
	}
	if stops == nil {
		stops, err = p.fallbackRoute(ctx)
		if err != nil {
			return nil, Internal(err, "failed to load recent orders")
		}
		result.Degraded = true
		logger.Warn().Int("stops", len(stops)).Msg("No assignments for shift, using recent-orders fallback route")
	}
	result.Stops = stops

	if len(stops) >= 2 && p.directions != nil {
		if polyline, err := p.optimize(ctx, stops); err != nil {
			logger.Warn().Err(err).Msg("Directions request failed, returning unoptimized route")
			result.Warnings = append(result.Warnings, Warning{Code: WarningDirectionsUnavailable, Message: err.Error()})
		} else if polyline != "" {
			result.Polyline = &polyline
		}
	}

	plan := &models.RoutePlan{
		DriverID:  driverID,
		ShiftDate: shift,
		Polyline:  result.Polyline,
		Stops:     models.Stops(stops),
		Degraded:  result.Degraded,
		CreatedAt: p.clock.Now(),
	}
	persisted := true
	if err := p.store.RoutePlans().Create(ctx, plan); err != nil {
		persisted = false
		logger.Error().Err(err).Msg("Failed to persist route plan")
		p.metrics.RecordError(metrics.ErrorTypeDatabase)
		result.Warnings = append(result.Warnings, Warning{Code: WarningPlanNotPersisted, Message: err.Error()})
	} else {
		result.PlanID = &plan.ID
	}

	// Only cache plans that exist in the database
	if p.cache != nil && persisted {
		if err := p.cache.SetRoutePlan(ctx, plan); err != nil {
			p.metrics.RecordError(metrics.ErrorTypeCache)
			logger.Debug().Err(err).Msg("Failed to cache route plan")
		}
	}

	p.metrics.RecordRoutePlan(result.Degraded)
	logger.Info().
		Int("stops", len(stops)).
		Bool("degraded", result.Degraded).
		Bool("optimized", result.Polyline != nil).
		Msg("Route planned")

	return result, nil
}

// LatestPlan returns the newest stored plan for the driver's current shift
func (p *RoutePlanner) LatestPlan(ctx context.Context, driverID string) (*models.RoutePlan, error) {
	driverID = strings.TrimSpace(driverID)
	if driverID == "" {
		return nil, BadRequest("driver_id is required")
	}
	shift := p.clock.ShiftDate()

	if p.cache != nil {
		if plan, err := p.cache.GetRoutePlan(ctx, driverID, shift); err == nil && plan != nil {
			return plan, nil
		}
	}

	plan, err := p.store.RoutePlans().Latest(ctx, driverID, shift)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrNotProvisioned) {
			return nil, NotFound("no route plan for driver %s on %s", driverID, shift)
		}
		return nil, Internal(err, "failed to load route plan")
	}

	if p.cache != nil {
		if err := p.cache.SetRoutePlan(ctx, plan); err != nil {
			log.Debug().Err(err).Str("driver_id", driverID).Msg("Failed to cache route plan")
		}
	}
	return plan, nil
}

// PlanAssignedDrivers plans today's route for every driver holding an
// assignment and returns how many plans were produced
func (p *RoutePlanner) PlanAssignedDrivers(ctx context.Context) (int, error) {
	shift := p.clock.ShiftDate()
	drivers, err := p.store.Assignments().ListDrivers(ctx, shift)
	if err != nil {
		if errors.Is(err, repository.ErrNotProvisioned) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "failed to list assigned drivers")
	}

	planned := 0
	for _, driverID := range drivers {
		if err := ctx.Err(); err != nil {
			return planned, err
		}
		if _, err := p.PlanRoute(ctx, driverID); err != nil {
			log.Error().Err(err).Str("driver_id", driverID).Msg("Failed to pre-plan route")
			continue
		}
		planned++
	}
	return planned, nil
}

// assignedStops returns nil when the driver has no assignments for the shift
func (p *RoutePlanner) assignedStops(ctx context.Context, driverID string, shift models.Date) ([]models.Stop, error) {
	assignments, err := p.store.Assignments().ListForDriver(ctx, driverID, shift)
	if err != nil {
		if errors.Is(err, repository.ErrNotProvisioned) {
			log.Warn().Msg("Driver assignments are not provisioned, treating as no assignments")
			return nil, nil
		}
		return nil, err
	}
	if len(assignments) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(assignments))
	for _, a := range assignments {
		ids = append(ids, a.OrderID)
	}
	orders, err := p.store.Orders().ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*models.Order, len(orders))
	for i := range orders {
		byID[orders[i].ID] = &orders[i]
	}

	stops := make([]models.Stop, 0, len(assignments))
	for _, a := range assignments {
		order, ok := byID[a.OrderID]
		if !ok {
			log.Warn().Str("order_id", a.OrderID.String()).Msg("Assigned order no longer exists, skipping stop")
			continue
		}
		stops = append(stops, newStop(a.ID.String(), order, models.StopTypeForRole(a.Role), len(stops)+1))
	}
	return stops, nil
}

// fallbackRoute is the degraded path used when no assignments exist: the
// most recent orders, the newest as a drop-off and the others as pickups.
func (p *RoutePlanner) fallbackRoute(ctx context.Context) ([]models.Stop, error) {
	orders, err := p.store.Orders().ListRecent(ctx, p.fallbackStops)
	if err != nil {
		return nil, err
	}
	stops := make([]models.Stop, 0, len(orders))
	for i := range orders {
		stopType := models.StopCustomerPickup
		if i == 0 {
			stopType = models.StopCustomerDropoff
		}
		stops = append(stops, newStop("fallback-"+orders[i].ID.String(), &orders[i], stopType, i+1))
	}
	return stops, nil
}

func (p *RoutePlanner) optimize(ctx context.Context, stops []models.Stop) (string, error) {
	defer tracing.StartSegment(ctx, "directions.optimize")()

	start := time.Now()
	polyline, err := p.directions.Polyline(ctx, stops)
	p.metrics.RecordDirectionsCall(err == nil, time.Since(start))
	return polyline, err
}

func newStop(id string, order *models.Order, stopType models.StopType, sequence int) models.Stop {
	lat, lng := order.Coordinates()
	return models.Stop{
		StopID:   id,
		OrderID:  order.ID,
		Type:     stopType,
		Lat:      lat,
		Lng:      lng,
		Address:  order.FormattedAddress(),
		Sequence: sequence,
	}
}
