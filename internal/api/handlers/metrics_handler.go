package handlers

import (
	"net/http"
	"runtime"

	"github.com/gin-gonic/gin"

	"example.com/eazyy/fulfillment/internal/metrics"
)

// MetricsHandler handles metrics-related HTTP requests
type MetricsHandler struct {
	metrics *metrics.Collector
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(collector *metrics.Collector) *MetricsHandler {
	return &MetricsHandler{metrics: collector}
}

// HandleGetMetrics returns all metrics
func (h *MetricsHandler) HandleGetMetrics(c *gin.Context) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	h.metrics.SetGauge(metrics.GaugeGoroutines, float64(runtime.NumGoroutine()))
	h.metrics.SetGauge(metrics.GaugeSystemMemory, float64(mem.Alloc))

	c.JSON(http.StatusOK, h.metrics.GetMetrics())
}

// HandleGetHealthCheck returns a simplified health status
func (h *MetricsHandler) HandleGetHealthCheck(c *gin.Context) {
	health := h.metrics.GetHealthStatus()

	status := http.StatusOK
	if s, ok := health["status"].(map[string]interface{}); ok {
		if healthy, _ := s["healthy"].(bool); !healthy {
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, health)
}

// RegisterRoutes registers the handler's routes
func (h *MetricsHandler) RegisterRoutes(router gin.IRouter) {
	router.GET("/health", h.HandleGetHealthCheck)
	router.GET("/metrics", h.HandleGetMetrics)
}
