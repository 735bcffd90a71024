package service

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"example.com/eazyy/fulfillment/internal/models"
)

// StatusPublisher announces committed order status changes
type StatusPublisher interface {
	PublishStatusChange(ctx context.Context, event models.StatusChangeEvent) error
}

// TimelineIndexer writes order timeline documents to the search index
type TimelineIndexer interface {
	IndexTimelineEntry(ctx context.Context, entry models.TimelineEntry) error
}

// PlanCache stores the latest route plan per driver and shift
type PlanCache interface {
	GetRoutePlan(ctx context.Context, driverID string, shift models.Date) (*models.RoutePlan, error)
	SetRoutePlan(ctx context.Context, plan *models.RoutePlan) error
}

// Directions computes an optimized route polyline through stops. The
// first stop is the origin and the last the destination.
type Directions interface {
	Polyline(ctx context.Context, stops []models.Stop) (string, error)
}

// PhotoStorage issues pre-signed upload URLs for delivery photos
type PhotoStorage interface {
	PresignPut(ctx context.Context, key string) (uploadURL string, objectURL string, err error)
}

// Clock anchors shift dates in the dispatch time zone
type Clock struct {
	clockwork.Clock
	Location *time.Location
}

// NewClock wraps a clockwork clock with the dispatch time zone
func NewClock(c clockwork.Clock, loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return Clock{Clock: c, Location: loc}
}

// ShiftDate returns today's shift date
func (c Clock) ShiftDate() models.Date {
	return models.DateOf(c.Now(), c.Location)
}
