package models

import "time"

// InsightDomain is the area a learning insight talks about
type InsightDomain string

const (
	DomainETA        InsightDomain = "ETA"
	DomainIncident   InsightDomain = "INCIDENT"
	DomainEscalation InsightDomain = "ESCALATION"
	DomainKillSwitch InsightDomain = "KILLSWITCH"
)

// InsightConfidence depends only on sample size
type InsightConfidence string

const (
	InsightConfidenceLow    InsightConfidence = "LOW"
	InsightConfidenceMedium InsightConfidence = "MEDIUM"
	InsightConfidenceHigh   InsightConfidence = "HIGH"
)

// LearningInsight is an advisory recommendation for human review. Never applied automatically.
type LearningInsight struct {
	ID             string            `json:"id"` // content hash
	Domain         InsightDomain     `json:"domain"`
	Confidence     InsightConfidence `json:"confidence"`
	SampleSize     int               `json:"sampleSize"`
	Evidence       map[string]any    `json:"evidence"`
	Recommendation string            `json:"recommendation"`
	ExpectedImpact string            `json:"expectedImpact"`
	RiskAssessment string            `json:"riskAssessment"`
	RollbackPlan   string            `json:"rollbackPlan"`
	GeneratedAt    time.Time         `json:"generatedAt"`
}

// IncidentOutcome is the learning view of one incident
type IncidentOutcome struct {
	ID          string         `json:"id"`
	Type        IncidentType   `json:"type"`
	Severity    Severity       `json:"severity"`
	Status      IncidentStatus `json:"status"`
	CloseReason string         `json:"closeReason,omitempty"`
	DetectedAt  time.Time      `json:"detectedAt"`
	ClosedAt    *time.Time     `json:"closedAt,omitempty"`
}

// LearningSnapshot is the point-in-time input of one learning run
type LearningSnapshot struct {
	AsOf                 time.Time                `json:"asOf"`
	Counters             map[string]int64         `json:"counters"`
	Gauges               map[string]float64       `json:"gauges"`
	ETAAbsErrorSumSec    float64                  `json:"etaAbsErrorSumSeconds"`
	ETAErrorCount        int64                    `json:"etaErrorCount"`
	Incidents            []IncidentOutcome        `json:"incidents"`
	LastEscalationRun    *EscalationRun           `json:"lastEscalationRun,omitempty"`
	KillSwitchActivation map[KillSwitchMode]int64 `json:"killSwitchActivations"`
	LatestSLO            *SLOSnapshot             `json:"latestSlo,omitempty"`
}

// LearningRunResult summarises one learning run
type LearningRunResult struct {
	AsOf     time.Time         `json:"asOf"`
	Insights []LearningInsight `json:"insights"`
	Stored   int               `json:"stored"`
	Existing int               `json:"existing"`
}
