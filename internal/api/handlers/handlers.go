package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/eazyy/fulfillment/internal/metrics"
	"example.com/eazyy/fulfillment/internal/models"
	"example.com/eazyy/fulfillment/internal/service"
	"example.com/eazyy/fulfillment/internal/utils"
)

// ScanSubmitter is implemented by service.ScanService
type ScanSubmitter interface {
	SubmitScan(ctx context.Context, req service.ScanRequest) (*service.ScanResult, error)
	History(ctx context.Context, orderID string) ([]models.ScanEvent, error)
}

// DeliveryRecorder is implemented by service.DeliveryService
type DeliveryRecorder interface {
	RecordDelivery(ctx context.Context, req service.DeliveryRequest) error
	PhotoUploadURL(ctx context.Context, orderID string) (*service.PhotoUpload, error)
}

// LocationReporter is implemented by service.LocationService
type LocationReporter interface {
	ReportLocation(ctx context.Context, req service.LocationRequest) error
	LatestLocation(ctx context.Context, driverID string) (*models.DriverLocationPing, error)
}

// RoutePlanner is implemented by service.RoutePlanner
type RoutePlanner interface {
	PlanRoute(ctx context.Context, driverID string) (*service.RoutePlanResult, error)
	LatestPlan(ctx context.Context, driverID string) (*models.RoutePlan, error)
}

// TimelineSearcher is implemented by search.ElasticClient
type TimelineSearcher interface {
	SearchTimeline(ctx context.Context, orderID uuid.UUID) ([]models.TimelineEntry, error)
}

// requestContext carries the New Relic transaction started by nrgin into the
// request context so service segments attach to it
func requestContext(c *gin.Context) context.Context {
	ctx := c.Request.Context()
	if txn := nrgin.Transaction(c); txn != nil {
		ctx = newrelic.NewContext(ctx, txn)
	}
	return ctx
}

func addAttribute(c *gin.Context, key string, value interface{}) {
	if txn := nrgin.Transaction(c); txn != nil {
		txn.AddAttribute(key, value)
	}
}

// bindJSON decodes and validates the request body, writing a 400 on failure
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		log.Debug().Err(err).Str("path", c.FullPath()).Msg("Invalid request body")
		badRequest(c, "invalid request body")
		return false
	}
	if err := utils.ValidateStruct(req); err != nil {
		metrics.GetCollector().RecordError(metrics.ErrorTypeValidation)
		code := service.CodeBadRequest
		if utils.IsUnknownScanKind(err) {
			code = service.CodeUnknownScanKind
		}
		writeError(c, &service.Error{Code: code, Message: utils.ValidationMessage(err)})
		return false
	}
	return true
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": message})
}

// statusFor maps a service error code to an HTTP status
func statusFor(code service.Code) int {
	switch code {
	case service.CodeBadRequest, service.CodeUnknownScanKind:
		return http.StatusBadRequest
	case service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeForbidden:
		return http.StatusForbidden
	case service.CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {ok:false, error}
func writeError(c *gin.Context, err error) {
	code := service.CodeOf(err)
	status := statusFor(code)

	message := "internal error"
	var serviceErr *service.Error
	if errors.As(err, &serviceErr) {
		message = serviceErr.Message
	}

	if status >= http.StatusInternalServerError {
		metrics.GetCollector().RecordError(metrics.ErrorTypeInternal)
		_ = c.Error(err)
		if txn := nrgin.Transaction(c); txn != nil {
			txn.NoticeError(err)
		}
	}
	addAttribute(c, "error_code", string(code))

	c.JSON(status, gin.H{"ok": false, "error": message})
}
