package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/jengzang/tracking-ops-backend/internal/service"
	"github.com/jengzang/tracking-ops-backend/pkg/response"
)

// LearningHandler serves stored insights. It has no write routes.
type LearningHandler struct {
	service *service.LearningService
}

// NewLearningHandler creates a new learning handler
func NewLearningHandler(service *service.LearningService) *LearningHandler {
	return &LearningHandler{service: service}
}

// GetInsights handles GET /api/v1/ops/learning/:domain
func (h *LearningHandler) GetInsights(c *gin.Context) {
	domain, err := service.ParseInsightDomain(c.Param("domain"))
	if err != nil {
		fail(c, err, "Failed to list insights")
		return
	}
	limit, ok := queryLimit(c, service.DefaultInsightListLimit)
	if !ok {
		response.BadRequest(c, "Invalid limit")
		return
	}

	insights, err := h.service.List(c.Request.Context(), domain, limit)
	if err != nil {
		fail(c, err, "Failed to list insights")
		return
	}
	response.Success(c, gin.H{
		"domain":   domain,
		"insights": insights,
	})
}
