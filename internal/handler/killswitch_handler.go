package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/tracking-ops-backend/internal/middleware"
	"github.com/jengzang/tracking-ops-backend/internal/models"
	"github.com/jengzang/tracking-ops-backend/internal/service"
	"github.com/jengzang/tracking-ops-backend/pkg/response"
)

// KillSwitchHandler handles kill switch reads and toggles
type KillSwitchHandler struct {
	service *service.KillSwitchService
}

// NewKillSwitchHandler creates a new kill switch handler
func NewKillSwitchHandler(service *service.KillSwitchService) *KillSwitchHandler {
	return &KillSwitchHandler{service: service}
}

// ToggleRequest is the body of a kill switch write
type ToggleRequest struct {
	Mode   models.KillSwitchMode `json:"mode"`
	Reason string                `json:"reason"`
}

// GetState handles GET /api/v1/ops/killswitch
func (h *KillSwitchHandler) GetState(c *gin.Context) {
	limit, ok := queryLimit(c, 0)
	if !ok {
		response.BadRequest(c, "Invalid limit")
		return
	}

	state, err := h.service.State(c.Request.Context(), limit)
	if err != nil {
		fail(c, err, "Failed to get kill switch")
		return
	}
	response.Success(c, state)
}

// SetMode handles POST /api/v1/ops/killswitch
func (h *KillSwitchHandler) SetMode(c *gin.Context) {
	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		response.BadRequest(c, "reason is required")
		return
	}
	if !req.Mode.Valid() {
		response.BadRequest(c, service.ErrInvalidMode.Error())
		return
	}

	transition, err := h.service.SetMode(c.Request.Context(), req.Mode, middleware.UserID(c), reason)
	if err != nil {
		fail(c, err, "Failed to set kill switch")
		return
	}
	response.Success(c, transition)
}
