// Package escalation holds the pure parts of the escalation engine: policy
// matching, step ordering, due computation and on-call resolution. The
// runner in the service package applies dedup and suppression state.
package escalation

import (
	"sort"
	"time"

	"github.com/jengzang/tracking-ops-backend/internal/models"
)

// IndexedStep is a policy step with its position in the ordered step list
type IndexedStep struct {
	Index int
	Step  models.EscalationStep
}

// Matches reports whether policy applies to the incident: its type is listed
// and the severities are equal
func Matches(policy models.EscalationPolicy, inc models.Incident) bool {
	if policy.Severity != inc.Severity {
		return false
	}
	for _, t := range policy.AppliesTo {
		if t == inc.Type {
			return true
		}
	}
	return false
}

// MatchPolicies filters policies for the incident, ordered by id
func MatchPolicies(policies []models.EscalationPolicy, inc models.Incident) []models.EscalationPolicy {
	var out []models.EscalationPolicy
	for _, p := range policies {
		if Matches(p, inc) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// OrderedSteps sorts steps by (afterMinutes, target). Index is the sorted
// position and is what dedup keys are built from.
func OrderedSteps(policy models.EscalationPolicy) []IndexedStep {
	steps := make([]models.EscalationStep, len(policy.Steps))
	copy(steps, policy.Steps)
	sort.SliceStable(steps, func(i, j int) bool {
		if steps[i].AfterMinutes != steps[j].AfterMinutes {
			return steps[i].AfterMinutes < steps[j].AfterMinutes
		}
		return steps[i].Target < steps[j].Target
	})

	out := make([]IndexedStep, len(steps))
	for i, s := range steps {
		out[i] = IndexedStep{Index: i, Step: s}
	}
	return out
}

// AgeMinutes is how long the incident has been open at now. Never negative.
func AgeMinutes(inc models.Incident, now time.Time) float64 {
	age := now.Sub(inc.DetectedAt).Minutes()
	if age < 0 {
		return 0
	}
	return age
}

// Plan lays out one decision per ordered step. Steps that are not due get
// NOT_DUE; due steps are left without an action for the runner to settle.
func Plan(inc models.Incident, policy models.EscalationPolicy, now time.Time) []models.EscalationDecision {
	age := AgeMinutes(inc, now)
	steps := OrderedSteps(policy)

	decisions := make([]models.EscalationDecision, 0, len(steps))
	for _, s := range steps {
		d := models.EscalationDecision{
			IncidentID:     inc.ID,
			IncidentType:   inc.Type,
			Severity:       inc.Severity,
			PolicyID:       policy.ID,
			StepIndex:      s.Index,
			AfterMinutes:   s.Step.AfterMinutes,
			Target:         s.Step.Target,
			AgeMinutes:     age,
			ShouldEscalate: age >= float64(s.Step.AfterMinutes),
		}
		if !d.ShouldEscalate {
			d.Action = models.ActionNotDue
			d.Reason = models.NotDueReasonBeforeOffset
		}
		decisions = append(decisions, d)
	}
	return decisions
}

// SuppressAll marks every decision as suppressed by the policy's window
func SuppressAll(decisions []models.EscalationDecision) {
	for i := range decisions {
		decisions[i].Action = models.ActionSuppressed
		decisions[i].Reason = models.SuppressedByWindow
	}
}

// SuppressionWindow converts the policy's window to a duration
func SuppressionWindow(policy models.EscalationPolicy) time.Duration {
	if policy.SuppressionWindowMinutes <= 0 {
		return 0
	}
	return time.Duration(policy.SuppressionWindowMinutes) * time.Minute
}
