package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/tracking-ops-backend/internal/middleware"
	"github.com/jengzang/tracking-ops-backend/internal/models"
	"github.com/jengzang/tracking-ops-backend/internal/service"
)

// IngestHandler handles rider location uploads
type IngestHandler struct {
	service *service.IngestService
}

// NewIngestHandler creates a new ingest handler
func NewIngestHandler(service *service.IngestService) *IngestHandler {
	return &IngestHandler{service: service}
}

// SubmitLocation handles POST /api/v1/tracking/location.
// Responses stay terse; devices only see a status or an error code.
func (h *IngestHandler) SubmitLocation(c *gin.Context) {
	var req models.LocationRequest
	var result models.IngestResult
	if err := c.ShouldBindJSON(&req); err != nil {
		result = h.service.Malformed(c.Request.Context())
	} else {
		result = h.service.Submit(c.Request.Context(), req, middleware.UserID(c))
	}

	switch result.Status {
	case models.IngestAccepted, models.IngestDeduped:
		c.JSON(http.StatusOK, gin.H{"status": result.Status})
	case models.IngestRejected:
		c.JSON(http.StatusBadRequest, gin.H{"error": result.Status, "reason": result.Reason})
	case models.IngestDisabled:
		c.JSON(http.StatusForbidden, gin.H{"error": result.Status})
	case models.IngestRateLimited:
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(result.RetryAfter)))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": result.Status})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": result.Status})
	}
}
