package models

import "time"

// EscalationAction is what the runner did with one (incident, policy, step)
type EscalationAction string

const (
	ActionEmitted    EscalationAction = "EMITTED"
	ActionDeduped    EscalationAction = "DEDUPED"
	ActionSuppressed EscalationAction = "SUPPRESSED"
	ActionNotDue     EscalationAction = "NOT_DUE"
)

// Suppression reasons
const (
	SuppressedByWindow       = "suppression_window"
	SuppressedSameTick       = "post_emit_suppression_same_tick"
	DedupedByStepKey         = "step_already_emitted"
	DedupedLostRace          = "step_claimed_concurrently"
	NotDueReasonBeforeOffset = "before_after_minutes"
)

// ResolvedTarget is the concrete person a step was routed to
type ResolvedTarget struct {
	Target     EscalationTarget `json:"target"`
	User       *string          `json:"user"`
	ScheduleID string           `json:"scheduleId,omitempty"`
}

// EscalationDecision is the per-step outcome of one escalation tick
type EscalationDecision struct {
	IncidentID     string           `json:"incidentId"`
	IncidentType   IncidentType     `json:"incidentType"`
	Severity       Severity         `json:"severity"`
	PolicyID       string           `json:"policyId"`
	StepIndex      int              `json:"stepIndex"`
	AfterMinutes   int              `json:"afterMinutes"`
	Target         EscalationTarget `json:"target"`
	AgeMinutes     float64          `json:"ageMinutes"`
	ShouldEscalate bool             `json:"shouldEscalate"`
	Action         EscalationAction `json:"action"`
	Reason         string           `json:"reason,omitempty"`
	Resolved       *ResolvedTarget  `json:"resolved,omitempty"`
}

// EscalationRun is the record of one escalation tick
type EscalationRun struct {
	RunID             string               `json:"runId"`
	At                time.Time            `json:"at"`
	IncidentsScanned  int                  `json:"incidentsScanned"`
	PoliciesEvaluated int                  `json:"policiesEvaluated"`
	Decisions         []EscalationDecision `json:"decisions"`
	Emitted           int                  `json:"emitted"`
	Deduped           int                  `json:"deduped"`
	Suppressed        int                  `json:"suppressed"`
}
