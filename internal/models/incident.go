package models

import "time"

// IncidentType is one of the eight detected conditions
type IncidentType string

const (
	IncidentTrackingStale       IncidentType = "TRACKING_STALE"
	IncidentETADrift            IncidentType = "ETA_DRIFT"
	IncidentSLABreachRisk       IncidentType = "SLA_BREACH_RISK"
	IncidentRiderOffline        IncidentType = "RIDER_OFFLINE"
	IncidentGPSAnomaly          IncidentType = "GPS_ANOMALY"
	IncidentStreamLag           IncidentType = "STREAM_LAG"
	IncidentHotStoreDegraded    IncidentType = "HOT_STORE_DEGRADED"
	IncidentKillSwitchTriggered IncidentType = "KILLSWITCH_TRIGGERED"
)

// IncidentTypes lists the taxonomy in a stable order
var IncidentTypes = []IncidentType{
	IncidentTrackingStale,
	IncidentETADrift,
	IncidentSLABreachRisk,
	IncidentRiderOffline,
	IncidentGPSAnomaly,
	IncidentStreamLag,
	IncidentHotStoreDegraded,
	IncidentKillSwitchTriggered,
}

// Valid reports whether t is part of the taxonomy
func (t IncidentType) Valid() bool {
	for _, known := range IncidentTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Severity of an incident
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarn     Severity = "WARN"
	SeverityCritical Severity = "CRITICAL"
)

// Valid reports whether s is a known severity
func (s Severity) Valid() bool {
	return s == SeverityInfo || s == SeverityWarn || s == SeverityCritical
}

// Scope of an incident subject
type Scope string

const (
	ScopeOrder  Scope = "ORDER"
	ScopeRider  Scope = "RIDER"
	ScopeRegion Scope = "REGION"
	ScopeGlobal Scope = "GLOBAL"
)

// IncidentStatus only moves forward: OPEN -> ACKED -> CLOSED
type IncidentStatus string

const (
	StatusOpen   IncidentStatus = "OPEN"
	StatusAcked  IncidentStatus = "ACKED"
	StatusClosed IncidentStatus = "CLOSED"
)

// Rank orders statuses along the lifecycle
func (s IncidentStatus) Rank() int {
	switch s {
	case StatusOpen:
		return 0
	case StatusAcked:
		return 1
	case StatusClosed:
		return 2
	default:
		return -1
	}
}

// Incident is a deduplicated, lifecycle-tracked operational condition
type Incident struct {
	ID          string         `json:"id"` // hash(type:scope:subject)
	Type        IncidentType   `json:"type"`
	Severity    Severity       `json:"severity"`
	Scope       Scope          `json:"scope"`
	Subject     string         `json:"subject"`
	Status      IncidentStatus `json:"status"`
	DetectedAt  time.Time      `json:"detectedAt"`
	LastSeenAt  time.Time      `json:"lastSeenAt"`
	AckedAt     *time.Time     `json:"ackedAt,omitempty"`
	AckedBy     string         `json:"ackedBy,omitempty"`
	ClosedAt    *time.Time     `json:"closedAt,omitempty"`
	ClosedBy    string         `json:"closedBy,omitempty"`
	CloseReason string         `json:"closeReason,omitempty"`
	Evidence    map[string]any `json:"evidence,omitempty"` // overwritten on re-detection
}

// DetectedIncident is one rule hit produced by the detector
type DetectedIncident struct {
	Type        IncidentType   `json:"type"`
	Severity    Severity       `json:"severity"`
	Scope       Scope          `json:"scope"`
	Subject     string         `json:"subject"`
	IncidentKey string         `json:"incidentKey"` // type:scope:subject
	IncidentID  string         `json:"incidentId"`
	Evidence    map[string]any `json:"evidence"`
}

// IncidentFilter represents filter parameters for listing incidents
type IncidentFilter struct {
	Status   string `form:"status"`
	Type     string `form:"type"`
	Severity string `form:"severity"`
	Limit    int    `form:"limit"`
}

// DetectionRunResult summarises one detection tick
type DetectionRunResult struct {
	At              time.Time          `json:"at"`
	OrdersEvaluated int                `json:"ordersEvaluated"`
	Detections      []DetectedIncident `json:"detections"`
	Created         int                `json:"created"`
	Updated         int                `json:"updated"`
}
