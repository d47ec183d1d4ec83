package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/tracking-ops-backend/internal/middleware"
	"github.com/jengzang/tracking-ops-backend/internal/models"
	"github.com/jengzang/tracking-ops-backend/internal/service"
	"github.com/jengzang/tracking-ops-backend/pkg/response"
)

// IncidentHandler handles incident lifecycle and timeline requests
type IncidentHandler struct {
	service *service.IncidentService
}

// NewIncidentHandler creates a new incident handler
func NewIncidentHandler(service *service.IncidentService) *IncidentHandler {
	return &IncidentHandler{service: service}
}

// CloseRequest is the optional body of a close
type CloseRequest struct {
	Reason string `json:"reason"`
}

// NoteRequest is the body of a timeline note
type NoteRequest struct {
	Text string     `json:"text"`
	At   *time.Time `json:"at"`
}

// GetIncidents handles GET /api/v1/ops/incidents
func (h *IncidentHandler) GetIncidents(c *gin.Context) {
	var filter models.IncidentFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}
	if filter.Status != "" && models.IncidentStatus(filter.Status).Rank() < 0 {
		response.BadRequest(c, "Invalid status")
		return
	}
	if filter.Type != "" && !models.IncidentType(filter.Type).Valid() {
		response.BadRequest(c, "Invalid type")
		return
	}
	if filter.Severity != "" && !models.Severity(filter.Severity).Valid() {
		response.BadRequest(c, "Invalid severity")
		return
	}

	incidents, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		fail(c, err, "Failed to list incidents")
		return
	}
	response.Success(c, gin.H{
		"incidents": incidents,
		"total":     len(incidents),
	})
}

// GetIncident handles GET /api/v1/ops/incidents/:id
func (h *IncidentHandler) GetIncident(c *gin.Context) {
	inc, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err, "Failed to get incident")
		return
	}
	response.Success(c, inc)
}

// AckIncident handles POST /api/v1/ops/incidents/:id/ack
func (h *IncidentHandler) AckIncident(c *gin.Context) {
	inc, err := h.service.Ack(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		fail(c, err, "Failed to ack incident")
		return
	}
	response.Success(c, inc)
}

// CloseIncident handles POST /api/v1/ops/incidents/:id/close
func (h *IncidentHandler) CloseIncident(c *gin.Context) {
	var req CloseRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}
	}

	inc, err := h.service.Close(c.Request.Context(), c.Param("id"), middleware.UserID(c), req.Reason)
	if err != nil {
		fail(c, err, "Failed to close incident")
		return
	}
	response.Success(c, inc)
}

// RunDetection handles POST /api/v1/ops/incidents/run
func (h *IncidentHandler) RunDetection(c *gin.Context) {
	now, ok := tickTime(c)
	if !ok {
		response.BadRequest(c, "Invalid now, expected RFC3339")
		return
	}

	result, err := h.service.RunDetection(c.Request.Context(), now)
	if err != nil {
		fail(c, err, "Failed to run detection")
		return
	}
	response.Success(c, result)
}

// GetTimeline handles GET /api/v1/ops/oncall/incidents/:id/timeline
func (h *IncidentHandler) GetTimeline(c *gin.Context) {
	entries, err := h.service.Timeline(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err, "Failed to get timeline")
		return
	}
	response.Success(c, gin.H{
		"incidentId": c.Param("id"),
		"entries":    entries,
	})
}

// AddNote handles POST /api/v1/ops/oncall/incidents/:id/notes
func (h *IncidentHandler) AddNote(c *gin.Context) {
	var req NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	entry, created, err := h.service.AddNote(c.Request.Context(), c.Param("id"), middleware.UserID(c), req.Text, req.At)
	if err != nil {
		fail(c, err, "Failed to add note")
		return
	}
	response.Success(c, gin.H{
		"entry":   entry,
		"created": created,
	})
}
