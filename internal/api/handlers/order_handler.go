package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"example.com/eazyy/fulfillment/internal/service"
)

// OrderHandler exposes per-order history
type OrderHandler struct {
	scans    ScanSubmitter
	timeline TimelineSearcher
}

// NewOrderHandler creates a new order handler. timeline may be nil when
// search is disabled.
func NewOrderHandler(scans ScanSubmitter, timeline TimelineSearcher) *OrderHandler {
	return &OrderHandler{scans: scans, timeline: timeline}
}

// HandleScanHistory lists the scans logged against an order
func (h *OrderHandler) HandleScanHistory(c *gin.Context) {
	scans, err := h.scans.History(requestContext(c), c.Param("order_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "scans": scans})
}

// HandleTimeline returns the indexed timeline of an order
func (h *OrderHandler) HandleTimeline(c *gin.Context) {
	if h.timeline == nil {
		writeError(c, service.NotFound("timeline search is disabled"))
		return
	}

	orderID, err := uuid.Parse(c.Param("order_id"))
	if err != nil {
		badRequest(c, "order_id must be a uuid")
		return
	}

	entries, err := h.timeline.SearchTimeline(requestContext(c), orderID)
	if err != nil {
		writeError(c, service.Internal(err, "failed to search timeline"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "timeline": entries})
}

// RegisterRoutes registers the handler's routes
func (h *OrderHandler) RegisterRoutes(router gin.IRouter) {
	orders := router.Group("/orders")
	orders.GET("/:order_id/scans", h.HandleScanHistory)
	orders.GET("/:order_id/timeline", h.HandleTimeline)
}
