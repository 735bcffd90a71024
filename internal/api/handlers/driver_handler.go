package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"example.com/eazyy/fulfillment/internal/models"
	"example.com/eazyy/fulfillment/internal/service"
)

// scanSourceDriverApp marks scans submitted over HTTP
const scanSourceDriverApp = "driver_app"

// DriverHandler handles requests from the driver app
type DriverHandler struct {
	scans      ScanSubmitter
	deliveries DeliveryRecorder
	locations  LocationReporter
}

// NewDriverHandler creates a new driver handler
func NewDriverHandler(scans ScanSubmitter, deliveries DeliveryRecorder, locations LocationReporter) *DriverHandler {
	return &DriverHandler{scans: scans, deliveries: deliveries, locations: locations}
}

// ScanRequest is the body of POST /driver/scan
type ScanRequest struct {
	Code     string          `json:"code" validate:"required"`
	Kind     string          `json:"kind" validate:"scan_kind"`
	DriverID *string         `json:"driver_id"`
	When     json.RawMessage `json:"when"`
}

// DeliveryRequest is the body of POST /driver/pod
type DeliveryRequest struct {
	OrderID      string  `json:"order_id" validate:"required"`
	DriverID     *string `json:"driver_id"`
	PhotoURL     *string `json:"photo_url"`
	SignatureURL *string `json:"signature_url"`
	Note         *string `json:"note"`
}

// LocationRequest is the body of POST /driver/location
type LocationRequest struct {
	DriverID   string     `json:"driver_id" validate:"required"`
	Lat        *float64   `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng        *float64   `json:"lng" validate:"required,gte=-180,lte=180"`
	Heading    *float64   `json:"heading"`
	Speed      *float64   `json:"speed"`
	RecordedAt *time.Time `json:"recorded_at"`
}

// PhotoURLRequest is the body of POST /driver/pod/photo-url
type PhotoURLRequest struct {
	OrderID string `json:"order_id" validate:"required"`
}

// HandleScan validates a barcode scan and advances the order
func (h *DriverHandler) HandleScan(c *gin.Context) {
	var req ScanRequest
	if !bindJSON(c, &req) {
		return
	}
	addAttribute(c, "scan_kind", req.Kind)

	when, rawWhen := models.ParseClientTimestamp(req.When)
	result, err := h.scans.SubmitScan(requestContext(c), service.ScanRequest{
		Code:               req.Code,
		Kind:               models.ScanKind(req.Kind),
		DriverID:           req.DriverID,
		ClientTimestamp:    when,
		ClientTimestampRaw: rawWhen,
		Source:             scanSourceDriverApp,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"order_id":  result.OrderID,
		"status":    result.Status,
		"duplicate": result.Duplicate,
	})
}

// HandleDelivery records a proof of delivery
func (h *DriverHandler) HandleDelivery(c *gin.Context) {
	var req DeliveryRequest
	if !bindJSON(c, &req) {
		return
	}
	addAttribute(c, "order_id", req.OrderID)

	err := h.deliveries.RecordDelivery(requestContext(c), service.DeliveryRequest{
		OrderID:      req.OrderID,
		DriverID:     req.DriverID,
		PhotoURL:     req.PhotoURL,
		SignatureURL: req.SignatureURL,
		Note:         req.Note,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// HandlePhotoURL issues a presigned upload target for a delivery photo
func (h *DriverHandler) HandlePhotoURL(c *gin.Context) {
	var req PhotoURLRequest
	if !bindJSON(c, &req) {
		return
	}

	upload, err := h.deliveries.PhotoUploadURL(requestContext(c), req.OrderID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "upload_url": upload.UploadURL, "photo_url": upload.PhotoURL})
}

// HandleLocation stores a GPS ping
func (h *DriverHandler) HandleLocation(c *gin.Context) {
	var req LocationRequest
	if !bindJSON(c, &req) {
		return
	}

	err := h.locations.ReportLocation(requestContext(c), service.LocationRequest{
		DriverID:   req.DriverID,
		Lat:        req.Lat,
		Lng:        req.Lng,
		Heading:    req.Heading,
		Speed:      req.Speed,
		RecordedAt: req.RecordedAt,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// HandleLatestLocation returns the driver's most recent ping
func (h *DriverHandler) HandleLatestLocation(c *gin.Context) {
	ping, err := h.locations.LatestLocation(requestContext(c), c.Param("driver_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "location": ping})
}

// RegisterRoutes registers the handler's routes
func (h *DriverHandler) RegisterRoutes(router gin.IRouter) {
	driver := router.Group("/driver")
	driver.POST("/scan", h.HandleScan)
	driver.POST("/pod", h.HandleDelivery)
	driver.POST("/pod/photo-url", h.HandlePhotoURL)
	driver.POST("/location", h.HandleLocation)
	driver.GET("/:driver_id/location", h.HandleLatestLocation)
}
