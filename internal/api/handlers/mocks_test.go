package handlers

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"example.com/eazyy/fulfillment/internal/models"
	"example.com/eazyy/fulfillment/internal/service"
)

type MockScanService struct {
	mock.Mock
}

func (m *MockScanService) SubmitScan(ctx context.Context, req service.ScanRequest) (*service.ScanResult, error) {
	args := m.Called(ctx, req)
	if r := args.Get(0); r != nil {
		return r.(*service.ScanResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockScanService) History(ctx context.Context, orderID string) ([]models.ScanEvent, error) {
	args := m.Called(ctx, orderID)
	if r := args.Get(0); r != nil {
		return r.([]models.ScanEvent), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockDeliveryService struct {
	mock.Mock
}

func (m *MockDeliveryService) RecordDelivery(ctx context.Context, req service.DeliveryRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockDeliveryService) PhotoUploadURL(ctx context.Context, orderID string) (*service.PhotoUpload, error) {
	args := m.Called(ctx, orderID)
	if r := args.Get(0); r != nil {
		return r.(*service.PhotoUpload), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockLocationService struct {
	mock.Mock
}

func (m *MockLocationService) ReportLocation(ctx context.Context, req service.LocationRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockLocationService) LatestLocation(ctx context.Context, driverID string) (*models.DriverLocationPing, error) {
	args := m.Called(ctx, driverID)
	if r := args.Get(0); r != nil {
		return r.(*models.DriverLocationPing), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockRoutePlanner struct {
	mock.Mock
}

func (m *MockRoutePlanner) PlanRoute(ctx context.Context, driverID string) (*service.RoutePlanResult, error) {
	args := m.Called(ctx, driverID)
	if r := args.Get(0); r != nil {
		return r.(*service.RoutePlanResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRoutePlanner) LatestPlan(ctx context.Context, driverID string) (*models.RoutePlan, error) {
	args := m.Called(ctx, driverID)
	if r := args.Get(0); r != nil {
		return r.(*models.RoutePlan), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockTimeline struct {
	mock.Mock
}

func (m *MockTimeline) SearchTimeline(ctx context.Context, orderID uuid.UUID) ([]models.TimelineEntry, error) {
	args := m.Called(ctx, orderID)
	if r := args.Get(0); r != nil {
		return r.([]models.TimelineEntry), args.Error(1)
	}
	return nil, args.Error(1)
}
