package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/jengzang/tracking-ops-backend/internal/middleware"
	"github.com/jengzang/tracking-ops-backend/internal/service"
	"github.com/jengzang/tracking-ops-backend/pkg/response"
)

// TrackingHandler handles customer and ops projection reads
type TrackingHandler struct {
	service *service.TrackingService
}

// NewTrackingHandler creates a new tracking handler
func NewTrackingHandler(service *service.TrackingService) *TrackingHandler {
	return &TrackingHandler{service: service}
}

// GetCustomerView handles GET /api/v1/tracking/orders/:orderId
func (h *TrackingHandler) GetCustomerView(c *gin.Context) {
	view, err := h.service.CustomerView(c.Request.Context(), c.Param("orderId"), middleware.UserID(c))
	if err != nil {
		fail(c, err, "Failed to get tracking")
		return
	}
	response.Success(c, view)
}

// GetOverview handles GET /api/v1/ops/overview
func (h *TrackingHandler) GetOverview(c *gin.Context) {
	overview, etag, err := h.service.Overview(c.Request.Context())
	if err != nil {
		fail(c, err, "Failed to get overview")
		return
	}
	response.Conditional(c, etag, overview)
}

// GetActive handles GET /api/v1/ops/active
func (h *TrackingHandler) GetActive(c *gin.Context) {
	limit, ok := queryLimit(c, 0)
	if !ok {
		response.BadRequest(c, "Invalid limit")
		return
	}

	active, etag, err := h.service.Active(c.Request.Context(), limit)
	if err != nil {
		fail(c, err, "Failed to get active orders")
		return
	}
	response.Conditional(c, etag, active)
}

// GetRisk handles GET /api/v1/ops/risk
func (h *TrackingHandler) GetRisk(c *gin.Context) {
	risk, etag, err := h.service.Risk(c.Request.Context())
	if err != nil {
		fail(c, err, "Failed to get risk overview")
		return
	}
	response.Conditional(c, etag, risk)
}
