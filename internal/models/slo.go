package models

import "time"

// SLOSnapshot is the hourly rollup of tracking health ratios
type SLOSnapshot struct {
	BucketStart time.Time `json:"bucketStart"`
	GeneratedAt time.Time `json:"generatedAt"`

	// Freshness
	Projections        int     `json:"projections"`
	Live               int     `json:"live"`
	Stale              int     `json:"stale"`
	Offline            int     `json:"offline"`
	LiveRatio          float64 `json:"liveRatio"`
	FreshnessAgeP50Sec float64 `json:"freshnessAgeP50Seconds"`
	FreshnessAgeP90Sec float64 `json:"freshnessAgeP90Seconds"`

	// ETA error
	ETAMeanAbsErrorSec float64 `json:"etaMeanAbsErrorSeconds"`
	ETASamples         int64   `json:"etaSamples"`

	// SLA prevention
	SLARiskHigh        int     `json:"slaRiskHigh"`
	SLAIncidents       int     `json:"slaIncidents"`
	SLAPrevented       int     `json:"slaPrevented"`
	SLAPreventionRatio float64 `json:"slaPreventionRatio"`

	// Ingestion funnel totals at snapshot time
	Ingest map[string]int64 `json:"ingest"`
}
