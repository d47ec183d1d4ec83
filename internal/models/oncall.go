package models

import "time"

// EscalationTarget is an abstract role resolved against the on-call schedule
type EscalationTarget string

const (
	TargetOnCallPrimary   EscalationTarget = "ONCALL_PRIMARY"
	TargetOnCallSecondary EscalationTarget = "ONCALL_SECONDARY"
	TargetOpsManager      EscalationTarget = "OPS_MANAGER"
)

// Valid reports whether t is a known target
func (t EscalationTarget) Valid() bool {
	return t == TargetOnCallPrimary || t == TargetOnCallSecondary || t == TargetOpsManager
}

// EscalationStep fires once the incident is at least AfterMinutes old
type EscalationStep struct {
	AfterMinutes int              `json:"afterMinutes" yaml:"afterMinutes"`
	Target       EscalationTarget `json:"target" yaml:"target"`
}

// EscalationPolicy maps incident types of one severity to timed steps
type EscalationPolicy struct {
	ID                       string           `json:"id" yaml:"id"`
	AppliesTo                []IncidentType   `json:"appliesTo" yaml:"appliesTo"`
	Severity                 Severity         `json:"severity" yaml:"severity"`
	Steps                    []EscalationStep `json:"steps" yaml:"steps"`
	SuppressionWindowMinutes int              `json:"suppressionWindowMinutes" yaml:"suppressionWindowMinutes"`
	Team                     string           `json:"team,omitempty" yaml:"team,omitempty"`
	UpdatedAt                time.Time        `json:"updatedAt" yaml:"-"`
}

// OnCallSchedule resolves abstract targets to people. It never gates escalation.
type OnCallSchedule struct {
	ID            string    `json:"id" yaml:"id"`
	Team          string    `json:"team" yaml:"team"`
	Primary       string    `json:"primary" yaml:"primary"`
	Secondary     string    `json:"secondary,omitempty" yaml:"secondary,omitempty"`
	Manager       string    `json:"manager,omitempty" yaml:"manager,omitempty"`
	Timezone      string    `json:"timezone" yaml:"timezone"`
	EffectiveFrom time.Time `json:"effectiveFrom" yaml:"effectiveFrom"`
	UpdatedAt     time.Time `json:"updatedAt" yaml:"-"`
}
