package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/jengzang/tracking-ops-backend/internal/service"
	"github.com/jengzang/tracking-ops-backend/pkg/response"
)

// EscalationHandler handles escalation runner requests
type EscalationHandler struct {
	service *service.EscalationService
}

// NewEscalationHandler creates a new escalation handler
func NewEscalationHandler(service *service.EscalationService) *EscalationHandler {
	return &EscalationHandler{service: service}
}

// RunEscalations handles POST /api/v1/ops/escalations/run
func (h *EscalationHandler) RunEscalations(c *gin.Context) {
	now, ok := tickTime(c)
	if !ok {
		response.BadRequest(c, "Invalid now, expected RFC3339")
		return
	}

	run, err := h.service.Run(c.Request.Context(), now)
	if err != nil {
		fail(c, err, "Failed to run escalations")
		return
	}
	response.Success(c, run)
}

// GetStatus handles GET /api/v1/ops/escalations/status
func (h *EscalationHandler) GetStatus(c *gin.Context) {
	run, err := h.service.Status(c.Request.Context())
	if err != nil {
		fail(c, err, "Failed to get escalation status")
		return
	}
	response.Success(c, gin.H{"lastRun": run})
}
