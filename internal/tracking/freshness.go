package tracking

import (
	"time"

	"github.com/jengzang/tracking-ops-backend/internal/models"
)

const (
	minThresholdSeconds = 1
	maxThresholdSeconds = 86400
)

// Thresholds are the freshness age limits in seconds
type Thresholds struct {
	StaleAfterSeconds   int
	OfflineAfterSeconds int
}

// Clamp bounds both limits to [1, 86400] and keeps offline >= stale
func (t Thresholds) Clamp() Thresholds {
	stale := clamp(t.StaleAfterSeconds)
	offline := clamp(t.OfflineAfterSeconds)
	if offline < stale {
		offline = stale
	}
	return Thresholds{StaleAfterSeconds: stale, OfflineAfterSeconds: offline}
}

func clamp(v int) int {
	if v < minThresholdSeconds {
		return minThresholdSeconds
	}
	if v > maxThresholdSeconds {
		return maxThresholdSeconds
	}
	return v
}

// ParseTimestamp parses an RFC3339 timestamp as written by the enrichment worker
func ParseTimestamp(raw string) (time.Time, bool) {
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// AgeSeconds is now - lastUpdatedAt, false when lastUpdatedAt does not parse
func AgeSeconds(lastUpdatedAt string, now time.Time) (float64, bool) {
	ts, ok := ParseTimestamp(lastUpdatedAt)
	if !ok {
		return 0, false
	}
	return now.Sub(ts).Seconds(), true
}

// ComputeFreshnessState classifies a projection by the age of its last update.
// Unparsable timestamps are OFFLINE.
func ComputeFreshnessState(lastUpdatedAt string, now time.Time, staleAfterSeconds, offlineAfterSeconds int) models.FreshnessState {
	age, ok := AgeSeconds(lastUpdatedAt, now)
	if !ok {
		return models.FreshnessOffline
	}

	th := Thresholds{StaleAfterSeconds: staleAfterSeconds, OfflineAfterSeconds: offlineAfterSeconds}.Clamp()
	switch {
	case age <= float64(th.StaleAfterSeconds):
		return models.FreshnessLive
	case age <= float64(th.OfflineAfterSeconds):
		return models.FreshnessStale
	default:
		return models.FreshnessOffline
	}
}

// Refresh overwrites the stored freshness with the value derived at now
func Refresh(p *models.TrackingProjection, now time.Time, th Thresholds) {
	p.FreshnessState = ComputeFreshnessState(p.LastUpdatedAt, now, th.StaleAfterSeconds, th.OfflineAfterSeconds)
}
