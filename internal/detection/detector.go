// Package detection evaluates the incident rules. Everything here is pure:
// callers gather projections, order context and health gauges, and persist
// whatever comes back.
package detection

import (
	"math"
	"time"

	"github.com/jengzang/tracking-ops-backend/internal/config"
	"github.com/jengzang/tracking-ops-backend/internal/fingerprint"
	"github.com/jengzang/tracking-ops-backend/internal/models"
	"github.com/jengzang/tracking-ops-backend/internal/spatial"
	"github.com/jengzang/tracking-ops-backend/internal/tracking"
)

// Thresholds for every rule. Use FromConfig to get floors applied.
type Thresholds struct {
	TrackingStaleSeconds     int
	ETADriftToleranceSeconds int
	RiderOfflineSeconds      int
	GPSAccuracyMeters        float64
	StreamLagSeconds         float64
	HotStoreFailureDelta     int64
}

// DefaultThresholds are used when nothing is configured
var DefaultThresholds = Thresholds{
	TrackingStaleSeconds:     120,
	ETADriftToleranceSeconds: 300,
	RiderOfflineSeconds:      180,
	GPSAccuracyMeters:        300,
	StreamLagSeconds:         90,
	HotStoreFailureDelta:     5,
}

// FromConfig converts configuration into thresholds with floors applied
func FromConfig(cfg config.DetectionConfig) Thresholds {
	return Thresholds{
		TrackingStaleSeconds:     max(cfg.TrackingStaleSeconds, 10),
		ETADriftToleranceSeconds: max(cfg.ETADriftToleranceSeconds, 0),
		RiderOfflineSeconds:      max(cfg.RiderOfflineSeconds, 10),
		GPSAccuracyMeters:        max(cfg.GPSAccuracyMeters, 10),
		StreamLagSeconds:         max(cfg.StreamLagSeconds, 1),
		HotStoreFailureDelta:     max(cfg.HotStoreFailureDelta, 1),
	}
}

// OrderInput is one order's current state
type OrderInput struct {
	Projection *models.TrackingProjection
	Order      *models.OrderContext // optional
}

// GlobalInput carries the fleet-wide gauges evaluated once per tick
type GlobalInput struct {
	EventTimeLagSeconds  float64
	HotStoreFailureDelta int64
	KillSwitchMode       models.KillSwitchMode
}

// Context is everything one detection tick looks at
type Context struct {
	Now        time.Time
	Orders     []OrderInput
	Global     *GlobalInput
	Freshness  tracking.Thresholds
	Thresholds Thresholds
}

// IncidentKey is the dedup key of a condition
func IncidentKey(typ models.IncidentType, scope models.Scope, subject string) string {
	return string(typ) + ":" + string(scope) + ":" + subject
}

// IncidentID is the stable id derived from an incident key
func IncidentID(key string) string {
	return fingerprint.Of("inc_", key)
}

// DetectIncidents evaluates the order rules for every order and the global rules once.
// Riders shared by several orders are reported once.
func DetectIncidents(c Context) []models.DetectedIncident {
	var out []models.DetectedIncident
	seen := make(map[string]bool)

	for _, in := range c.Orders {
		for _, d := range DetectOrder(c.Now, in, c.Freshness, c.Thresholds) {
			if seen[d.IncidentID] {
				continue
			}
			seen[d.IncidentID] = true
			out = append(out, d)
		}
	}
	if c.Global != nil {
		out = append(out, DetectGlobal(*c.Global, c.Thresholds)...)
	}
	return out
}

// DetectOrder evaluates the order and rider scoped rules for one projection
func DetectOrder(now time.Time, in OrderInput, fth tracking.Thresholds, th Thresholds) []models.DetectedIncident {
	p := in.Projection
	if p == nil || p.OrderID == "" {
		return nil
	}

	var out []models.DetectedIncident
	freshness := tracking.ComputeFreshnessState(p.LastUpdatedAt, now, fth.StaleAfterSeconds, fth.OfflineAfterSeconds)
	age, ageKnown := tracking.AgeSeconds(p.LastUpdatedAt, now)

	if freshness != models.FreshnessLive && staleFor(age, ageKnown, th.TrackingStaleSeconds) {
		out = append(out, newDetection(models.IncidentTrackingStale, models.SeverityWarn, models.ScopeOrder, p.OrderID, map[string]any{
			"freshnessState":   string(freshness),
			"ageSeconds":       ageEvidence(age, ageKnown),
			"thresholdSeconds": th.TrackingStaleSeconds,
			"lastUpdatedAt":    p.LastUpdatedAt,
		}))
	}

	if in.Order != nil && in.Order.PromisedWindowEnd != nil && p.ETAP90 != nil {
		deadline := in.Order.PromisedWindowEnd.Add(time.Duration(th.ETADriftToleranceSeconds) * time.Second)
		if p.ETAP90.After(deadline) {
			out = append(out, newDetection(models.IncidentETADrift, models.SeverityWarn, models.ScopeOrder, p.OrderID, map[string]any{
				"etaP90":            p.ETAP90.UTC().Format(time.RFC3339),
				"promisedWindowEnd": in.Order.PromisedWindowEnd.UTC().Format(time.RFC3339),
				"driftSeconds":      math.Round(p.ETAP90.Sub(*in.Order.PromisedWindowEnd).Seconds()),
				"toleranceSeconds":  th.ETADriftToleranceSeconds,
			}))
		}
	}

	if p.SLARiskLevel == models.SLARiskHigh {
		ev := map[string]any{
			"slaRiskLevel":   string(p.SLARiskLevel),
			"slaRiskReasons": p.SLARiskReasons,
		}
		if in.Order != nil && in.Order.PromisedWindowEnd != nil {
			ev["promisedWindowEnd"] = in.Order.PromisedWindowEnd.UTC().Format(time.RFC3339)
		}
		out = append(out, newDetection(models.IncidentSLABreachRisk, models.SeverityCritical, models.ScopeOrder, p.OrderID, ev))
	}

	riderID := p.RiderID
	if riderID == "" && in.Order != nil {
		riderID = in.Order.RiderID
	}
	if riderID != "" && freshness != models.FreshnessLive && staleFor(age, ageKnown, th.RiderOfflineSeconds) {
		out = append(out, newDetection(models.IncidentRiderOffline, models.SeverityWarn, models.ScopeRider, riderID, map[string]any{
			"orderId":          p.OrderID,
			"ageSeconds":       ageEvidence(age, ageKnown),
			"thresholdSeconds": th.RiderOfflineSeconds,
		}))
	}

	// accuracy alone is normal urban noise
	if p.AccuracyRadiusM >= th.GPSAccuracyMeters && p.MovementConfidence == models.ConfidenceLow {
		ev := map[string]any{
			"accuracyRadiusM":    p.AccuracyRadiusM,
			"thresholdMeters":    th.GPSAccuracyMeters,
			"movementConfidence": string(p.MovementConfidence),
		}
		if p.SmoothedPosition != nil {
			offset := spatial.HaversineDistance(p.Position.Lat, p.Position.Lng, p.SmoothedPosition.Lat, p.SmoothedPosition.Lng)
			ev["smoothedOffsetM"] = math.Round(offset)
		}
		out = append(out, newDetection(models.IncidentGPSAnomaly, models.SeverityWarn, models.ScopeOrder, p.OrderID, ev))
	}

	return out
}

// DetectGlobal evaluates the fleet-wide rules
func DetectGlobal(g GlobalInput, th Thresholds) []models.DetectedIncident {
	var out []models.DetectedIncident

	if g.EventTimeLagSeconds >= th.StreamLagSeconds {
		out = append(out, newDetection(models.IncidentStreamLag, models.SeverityCritical, models.ScopeGlobal, "stream", map[string]any{
			"eventTimeLagSeconds": g.EventTimeLagSeconds,
			"thresholdSeconds":    th.StreamLagSeconds,
		}))
	}

	if g.HotStoreFailureDelta >= th.HotStoreFailureDelta {
		out = append(out, newDetection(models.IncidentHotStoreDegraded, models.SeverityCritical, models.ScopeGlobal, "hot_store", map[string]any{
			"writeFailureDelta": g.HotStoreFailureDelta,
			"threshold":         th.HotStoreFailureDelta,
		}))
	}

	if g.KillSwitchMode != models.KillSwitchCustomerReadEnabled {
		out = append(out, newDetection(models.IncidentKillSwitchTriggered, models.SeverityCritical, models.ScopeGlobal, "killswitch", map[string]any{
			"mode": string(g.KillSwitchMode),
		}))
	}

	return out
}

func newDetection(typ models.IncidentType, sev models.Severity, scope models.Scope, subject string, evidence map[string]any) models.DetectedIncident {
	key := IncidentKey(typ, scope, subject)
	return models.DetectedIncident{
		Type:        typ,
		Severity:    sev,
		Scope:       scope,
		Subject:     subject,
		IncidentKey: key,
		IncidentID:  IncidentID(key),
		Evidence:    evidence,
	}
}

// staleFor treats an unparsable timestamp as stale for any threshold
func staleFor(age float64, known bool, thresholdSeconds int) bool {
	return !known || age >= float64(thresholdSeconds)
}

func ageEvidence(age float64, known bool) any {
	if !known {
		return nil
	}
	return math.Round(age)
}
