package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RouteHandler serves route plans
type RouteHandler struct {
	planner RoutePlanner
}

// NewRouteHandler creates a new route handler
func NewRouteHandler(planner RoutePlanner) *RouteHandler {
	return &RouteHandler{planner: planner}
}

// RoutePlanRequest is the body of POST /route/plan
type RoutePlanRequest struct {
	DriverID string `json:"driver_id" validate:"required"`
}

// HandlePlanRoute builds the driver's plan for the current shift
func (h *RouteHandler) HandlePlanRoute(c *gin.Context) {
	var req RoutePlanRequest
	if !bindJSON(c, &req) {
		return
	}
	addAttribute(c, "driver_id", req.DriverID)

	result, err := h.planner.PlanRoute(requestContext(c), req.DriverID)
	if err != nil {
		writeError(c, err)
		return
	}
	addAttribute(c, "degraded", result.Degraded)

	body := gin.H{
		"ok":         true,
		"driver_id":  result.DriverID,
		"shift_date": result.ShiftDate,
		"stops":      result.Stops,
		"degraded":   result.Degraded,
	}
	if result.PlanID != nil {
		body["plan_id"] = result.PlanID
	}
	if result.Polyline != nil {
		body["polyline"] = *result.Polyline
	}
	if len(result.Warnings) > 0 {
		body["warnings"] = result.Warnings
	}

	c.JSON(http.StatusOK, body)
}

// HandleLatestPlan returns the last plan built for the driver this shift
func (h *RouteHandler) HandleLatestPlan(c *gin.Context) {
	plan, err := h.planner.LatestPlan(requestContext(c), c.Param("driver_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "plan": plan})
}

// RegisterRoutes registers the handler's routes
func (h *RouteHandler) RegisterRoutes(router gin.IRouter) {
	route := router.Group("/route")
	route.POST("/plan", h.HandlePlanRoute)
	route.GET("/plan/:driver_id", h.HandleLatestPlan)
}
