package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/jengzang/tracking-ops-backend/internal/models"
	"github.com/jengzang/tracking-ops-backend/internal/service"
	"github.com/jengzang/tracking-ops-backend/pkg/response"
)

// OnCallHandler handles escalation policy and schedule requests
type OnCallHandler struct {
	service *service.OnCallService
}

// NewOnCallHandler creates a new on-call handler
func NewOnCallHandler(service *service.OnCallService) *OnCallHandler {
	return &OnCallHandler{service: service}
}

// GetPolicies handles GET /api/v1/ops/oncall/policies
func (h *OnCallHandler) GetPolicies(c *gin.Context) {
	policies, err := h.service.ListPolicies(c.Request.Context())
	if err != nil {
		fail(c, err, "Failed to list policies")
		return
	}
	response.Success(c, gin.H{"policies": policies})
}

// PutPolicy handles POST /api/v1/ops/oncall/policies
func (h *OnCallHandler) PutPolicy(c *gin.Context) {
	var policy models.EscalationPolicy
	if err := c.ShouldBindJSON(&policy); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	saved, err := h.service.PutPolicy(c.Request.Context(), policy)
	if err != nil {
		fail(c, err, "Failed to save policy")
		return
	}
	response.Success(c, saved)
}

// GetSchedules handles GET /api/v1/ops/oncall/schedules
func (h *OnCallHandler) GetSchedules(c *gin.Context) {
	schedules, err := h.service.ListSchedules(c.Request.Context())
	if err != nil {
		fail(c, err, "Failed to list schedules")
		return
	}
	response.Success(c, gin.H{"schedules": schedules})
}

// PutSchedule handles POST /api/v1/ops/oncall/schedules
func (h *OnCallHandler) PutSchedule(c *gin.Context) {
	var schedule models.OnCallSchedule
	if err := c.ShouldBindJSON(&schedule); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	saved, err := h.service.PutSchedule(c.Request.Context(), schedule)
	if err != nil {
		fail(c, err, "Failed to save schedule")
		return
	}
	response.Success(c, saved)
}
