package models

import "time"

// TimelineEntryType is the kind of audit entry on an incident timeline
type TimelineEntryType string

const (
	TimelineDetected     TimelineEntryType = "detected"
	TimelineEscalated    TimelineEntryType = "escalated"
	TimelineAcknowledged TimelineEntryType = "acknowledged"
	TimelineClosed       TimelineEntryType = "closed"
	TimelineNote         TimelineEntryType = "note"
)

// IncidentTimelineEntry is one append-only audit record
type IncidentTimelineEntry struct {
	ID         string            `json:"id"`
	IncidentID string            `json:"incidentId"`
	Type       TimelineEntryType `json:"type"`
	At         time.Time         `json:"at"`
	Actor      string            `json:"actor"`
	Text       string            `json:"text,omitempty"`
	Data       map[string]any    `json:"data,omitempty"`
}
