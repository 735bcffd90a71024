package service

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/mock"

	"example.com/eazyy/fulfillment/internal/models"
)

var shiftStart = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func newTestClock() (Clock, *clockwork.FakeClock) {
	fake := clockwork.NewFakeClockAt(shiftStart)
	return NewClock(fake, time.UTC), fake
}

// MockPublisher is a mock implementation of StatusPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishStatusChange(ctx context.Context, event models.StatusChangeEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockIndexer is a mock implementation of TimelineIndexer
type MockIndexer struct {
	mock.Mock
}

func (m *MockIndexer) IndexTimelineEntry(ctx context.Context, entry models.TimelineEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// MockDirections is a mock implementation of Directions
type MockDirections struct {
	mock.Mock
}

func (m *MockDirections) Polyline(ctx context.Context, stops []models.Stop) (string, error) {
	args := m.Called(ctx, stops)
	return args.String(0), args.Error(1)
}

// MockPhotoStorage is a mock implementation of PhotoStorage
type MockPhotoStorage struct {
	mock.Mock
}

func (m *MockPhotoStorage) PresignPut(ctx context.Context, key string) (string, string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.String(1), args.Error(2)
}

// MockPlanCache is a mock implementation of PlanCache
type MockPlanCache struct {
	mock.Mock
}

func (m *MockPlanCache) GetRoutePlan(ctx context.Context, driverID string, shift models.Date) (*models.RoutePlan, error) {
	args := m.Called(ctx, driverID, shift)
	if plan := args.Get(0); plan != nil {
		return plan.(*models.RoutePlan), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPlanCache) SetRoutePlan(ctx context.Context, plan *models.RoutePlan) error {
	args := m.Called(ctx, plan)
	return args.Error(0)
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }
