package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/jengzang/tracking-ops-backend/internal/service"
	"github.com/jengzang/tracking-ops-backend/pkg/response"
)

// SLOHandler serves hourly SLO snapshots
type SLOHandler struct {
	service *service.SLOService
}

// NewSLOHandler creates a new SLO handler
func NewSLOHandler(service *service.SLOService) *SLOHandler {
	return &SLOHandler{service: service}
}

// GetLatest handles GET /api/v1/ops/slo/latest
func (h *SLOHandler) GetLatest(c *gin.Context) {
	snap, err := h.service.Latest(c.Request.Context())
	if err != nil {
		fail(c, err, "Failed to get SLO snapshot")
		return
	}
	response.Success(c, snap)
}

// GetSnapshots handles GET /api/v1/ops/slo
func (h *SLOHandler) GetSnapshots(c *gin.Context) {
	limit, ok := queryLimit(c, service.DefaultSLOListLimit)
	if !ok {
		response.BadRequest(c, "Invalid limit")
		return
	}

	snaps, err := h.service.List(c.Request.Context(), limit)
	if err != nil {
		fail(c, err, "Failed to list SLO snapshots")
		return
	}
	response.Success(c, gin.H{"snapshots": snaps})
}
