// Package learning derives advisory insights from a point-in-time snapshot.
// Generators are deterministic and never change policies, schedules or
// thresholds; their output is for human review only.
package learning

import (
	"fmt"
	"strings"
	"time"

	"github.com/jengzang/tracking-ops-backend/internal/fingerprint"
	"github.com/jengzang/tracking-ops-backend/internal/models"
	"github.com/jengzang/tracking-ops-backend/internal/stats"
)

const (
	highNoiseFalsePositiveRate = 0.30
	highVolumeEmissions        = 10
	frequentActivations        = 5

	etaHighErrorSeconds = 300
)

// FalsePositivePrefix marks a close reason as a false positive
const FalsePositivePrefix = "false_positive"

// Generator turns a snapshot into one insight
type Generator func(s models.LearningSnapshot) models.LearningInsight

// Generators run in this order on every learning pass
var Generators = []Generator{ETAInsight, IncidentInsight, EscalationInsight, KillSwitchInsight}

// ConfidenceFor depends on sample size only
func ConfidenceFor(sampleSize int) models.InsightConfidence {
	switch {
	case sampleSize >= 100:
		return models.InsightConfidenceHigh
	case sampleSize >= 20:
		return models.InsightConfidenceMedium
	default:
		return models.InsightConfidenceLow
	}
}

// Generate runs every generator and assigns content ids
func Generate(s models.LearningSnapshot) ([]models.LearningInsight, error) {
	out := make([]models.LearningInsight, 0, len(Generators))
	for _, g := range Generators {
		in := g(s)
		id, err := ContentID(in)
		if err != nil {
			return nil, fmt.Errorf("failed to hash %s insight: %w", in.Domain, err)
		}
		in.ID = id
		out = append(out, in)
	}
	return out, nil
}

// ContentID hashes every field except the id itself
func ContentID(in models.LearningInsight) (string, error) {
	in.ID = ""
	return fingerprint.JSON("ins_", in)
}

// ETAInsight reports average absolute ETA error. It never proposes a value.
func ETAInsight(s models.LearningSnapshot) models.LearningInsight {
	samples := int(s.ETAErrorCount)
	mean := 0.0
	if s.ETAErrorCount > 0 {
		mean = stats.Round(s.ETAAbsErrorSumSec/float64(s.ETAErrorCount), 1)
	}

	evidence := map[string]any{
		"meanAbsErrorSeconds": mean,
		"samples":             samples,
	}
	if s.LatestSLO != nil {
		evidence["sloEtaMeanAbsErrorSeconds"] = s.LatestSLO.ETAMeanAbsErrorSec
		evidence["sloBucketStart"] = s.LatestSLO.BucketStart.UTC().Format(time.RFC3339)
	}

	rec := "ETA error is within the expected range; keep the current ETA model."
	impact := "None expected; no change proposed."
	switch {
	case samples == 0:
		rec = "No ETA error samples recorded yet; collect delivered-order outcomes before drawing conclusions."
	case mean >= etaHighErrorSeconds:
		rec = "Average ETA error is high. Review ETA quantile calibration against recent deliveries; validate any candidate by replay, then shadow, before promotion."
		impact = "Tighter ETA windows and fewer ETA_DRIFT incidents if a recalibrated model validates."
	}

	return models.LearningInsight{
		Domain:         models.DomainETA,
		Confidence:     ConfidenceFor(samples),
		SampleSize:     samples,
		Evidence:       evidence,
		Recommendation: rec,
		ExpectedImpact: impact,
		RiskAssessment: "Recalibrating without replay validation can widen or shift ETA windows for every customer.",
		RollbackPlan:   "Keep the current ETA model version deployable and switch back if shadow error regresses.",
		GeneratedAt:    s.AsOf,
	}
}

// IncidentInsight measures the false-positive rate among closed incidents
func IncidentInsight(s models.LearningSnapshot) models.LearningInsight {
	closed, falsePositives := 0, 0
	byType := make(map[string]int)
	for _, inc := range s.Incidents {
		if inc.Status != models.StatusClosed {
			continue
		}
		closed++
		if strings.HasPrefix(inc.CloseReason, FalsePositivePrefix) {
			falsePositives++
			byType[string(inc.Type)]++
		}
	}
	rate := stats.Round(stats.Ratio(float64(falsePositives), float64(closed)), 3)

	rec := "False-positive rate is acceptable; keep current detection thresholds."
	impact := "None expected; no change proposed."
	if closed > 0 && rate >= highNoiseFalsePositiveRate {
		rec = "Detection is high-noise. Review thresholds of the incident types with the most false positives, starting with a replay of recent closed incidents."
		impact = "Less pager noise and faster response to real incidents."
	}

	return models.LearningInsight{
		Domain:     models.DomainIncident,
		Confidence: ConfidenceFor(closed),
		SampleSize: closed,
		Evidence: map[string]any{
			"closedIncidents":        closed,
			"falsePositives":         falsePositives,
			"falsePositiveRate":      rate,
			"falsePositivesByType":   byType,
			"incidentsInSnapshot":    len(s.Incidents),
			"highNoiseRateThreshold": highNoiseFalsePositiveRate,
		},
		Recommendation: rec,
		ExpectedImpact: impact,
		RiskAssessment: "Raising thresholds can hide real degradations; lowering them increases noise.",
		RollbackPlan:   "Restore the previous threshold environment values and redeploy the detector.",
		GeneratedAt:    s.AsOf,
	}
}

// EscalationInsight compares emitted and suppressed escalation decisions
func EscalationInsight(s models.LearningSnapshot) models.LearningInsight {
	emitted, suppressed, deduped, total := 0, 0, 0, 0
	if s.LastEscalationRun != nil {
		for _, d := range s.LastEscalationRun.Decisions {
			total++
			switch d.Action {
			case models.ActionEmitted:
				emitted++
			case models.ActionSuppressed:
				suppressed++
			case models.ActionDeduped:
				deduped++
			}
		}
	}
	ratio := stats.Round(stats.Ratio(float64(emitted), float64(emitted+suppressed)), 3)

	rec := "Escalation volume is moderate; keep current policies."
	impact := "None expected; no change proposed."
	if emitted >= highVolumeEmissions {
		rec = "Escalation volume is high. Review suppression windows and step offsets of the busiest policies to reduce on-call fatigue."
		impact = "Fewer pages per incident with the same time to first response."
	}

	evidence := map[string]any{
		"decisions":       total,
		"emitted":         emitted,
		"suppressed":      suppressed,
		"deduped":         deduped,
		"emittedRatio":    ratio,
		"highVolumeLimit": highVolumeEmissions,
	}
	if s.LastEscalationRun != nil {
		evidence["runId"] = s.LastEscalationRun.RunID
	}

	return models.LearningInsight{
		Domain:         models.DomainEscalation,
		Confidence:     ConfidenceFor(total),
		SampleSize:     total,
		Evidence:       evidence,
		Recommendation: rec,
		ExpectedImpact: impact,
		RiskAssessment: "Longer suppression windows delay follow-up pages for incidents that are still getting worse.",
		RollbackPlan:   "Re-apply the previous policy definitions from the on-call seed file.",
		GeneratedAt:    s.AsOf,
	}
}

// KillSwitchInsight counts switches into a restricting mode
func KillSwitchInsight(s models.LearningSnapshot) models.LearningInsight {
	off := s.KillSwitchActivation[models.KillSwitchOff]
	ingestOnly := s.KillSwitchActivation[models.KillSwitchIngestOnly]
	restored := s.KillSwitchActivation[models.KillSwitchCustomerReadEnabled]
	activations := int(off + ingestOnly)

	rec := "Kill switch use is rare; no change suggested."
	impact := "None expected; no change proposed."
	if activations >= frequentActivations {
		rec = "The kill switch is used frequently. Review the incidents that preceded each activation and fix the underlying tracking degradations."
		impact = "Fewer customer-visible tracking outages."
	}

	return models.LearningInsight{
		Domain:     models.DomainKillSwitch,
		Confidence: ConfidenceFor(activations),
		SampleSize: activations,
		Evidence: map[string]any{
			"activations":   activations,
			"off":           off,
			"ingestOnly":    ingestOnly,
			"restored":      restored,
			"frequentLimit": frequentActivations,
		},
		Recommendation: rec,
		ExpectedImpact: impact,
		RiskAssessment: "Using the kill switch less without fixing causes exposes customers to wrong tracking.",
		RollbackPlan:   "No automated change is made; operators keep full manual control of the switch.",
		GeneratedAt:    s.AsOf,
	}
}
