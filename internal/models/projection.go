package models

import "time"

// ProjectionSchemaVersion is the projection record version this service understands
const ProjectionSchemaVersion = 1

// FreshnessState classifies how recently a projection was updated
type FreshnessState string

const (
	FreshnessLive    FreshnessState = "LIVE"
	FreshnessStale   FreshnessState = "STALE"
	FreshnessOffline FreshnessState = "OFFLINE"
)

// MovementConfidence is set by the enrichment worker
type MovementConfidence string

const (
	ConfidenceHigh   MovementConfidence = "HIGH"
	ConfidenceMedium MovementConfidence = "MEDIUM"
	ConfidenceLow    MovementConfidence = "LOW"
)

// SLARiskLevel is the enrichment worker's estimate of missing the promised window
type SLARiskLevel string

const (
	SLARiskNone   SLARiskLevel = "NONE"
	SLARiskLow    SLARiskLevel = "LOW"
	SLARiskMedium SLARiskLevel = "MEDIUM"
	SLARiskHigh   SLARiskLevel = "HIGH"
)

// Marker is the privacy-safe position shown to customers
type Marker struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	RadiusM int     `json:"radiusM"`
}

// LatLng is a plain coordinate pair
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// TrackingProjection is the current tracking snapshot of one order.
// Written by the enrichment worker; this service only reads it.
type TrackingProjection struct {
	Version         int     `json:"v"`
	OrderID         string  `json:"orderId"`
	RiderID         string  `json:"riderId"`
	Position        LatLng  `json:"position"`
	AccuracyRadiusM float64 `json:"accuracyRadiusM"`
	LastUpdatedAt   string  `json:"lastUpdatedAt"` // RFC3339, parsed at read time

	// Recomputed on every read, whatever the worker stored
	FreshnessState FreshnessState `json:"freshnessState"`
	MovementState  string         `json:"movementState,omitempty"`

	// Enrichment (optional)
	SmoothedPosition   *LatLng            `json:"smoothedPosition,omitempty"`
	MovementConfidence MovementConfidence `json:"movementConfidence,omitempty"`
	Marker             *Marker            `json:"marker,omitempty"`
	CheckpointState    string             `json:"checkpointState,omitempty"`
	InternalState      string             `json:"internalState,omitempty"`

	// ETA
	ETAP50        *time.Time `json:"etaP50,omitempty"`
	ETAP90        *time.Time `json:"etaP90,omitempty"`
	ETAConfidence string     `json:"etaConfidence,omitempty"`

	// SLA risk
	SLARiskLevel      SLARiskLevel `json:"slaRiskLevel,omitempty"`
	SLARiskReasons    []string     `json:"slaRiskReasons,omitempty"`
	SLARiskDetectedAt *time.Time   `json:"slaRiskDetectedAt,omitempty"`
}

// CustomerVisibility tells the customer app whether tracking can be shown
type CustomerVisibility string

const (
	VisibilityVisible CustomerVisibility = "VISIBLE"
	VisibilityHidden  CustomerVisibility = "HIDDEN"
)

// CustomerTrackingView is the customer-facing read model. Never carries raw GPS.
type CustomerTrackingView struct {
	OrderID         string             `json:"orderId"`
	Visibility      CustomerVisibility `json:"visibility"`
	Marker          *Marker            `json:"marker,omitempty"`
	CheckpointState string             `json:"checkpointState,omitempty"`
	FreshnessState  FreshnessState     `json:"freshnessState,omitempty"`
	ETAP50          *time.Time         `json:"etaP50,omitempty"`
	ETAP90          *time.Time         `json:"etaP90,omitempty"`
}
