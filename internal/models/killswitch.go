package models

import "time"

// KillSwitchMode gates ingestion and customer reads
type KillSwitchMode string

const (
	KillSwitchOff                 KillSwitchMode = "OFF"
	KillSwitchIngestOnly          KillSwitchMode = "INGEST_ONLY"
	KillSwitchCustomerReadEnabled KillSwitchMode = "CUSTOMER_READ_ENABLED"
)

// KillSwitchModes lists modes in ordinal order
var KillSwitchModes = []KillSwitchMode{KillSwitchOff, KillSwitchIngestOnly, KillSwitchCustomerReadEnabled}

// Valid reports whether m is a known mode
func (m KillSwitchMode) Valid() bool {
	return m.Ordinal() >= 0
}

// Ordinal is the gauge value exported for the mode
func (m KillSwitchMode) Ordinal() int {
	for i, known := range KillSwitchModes {
		if m == known {
			return i
		}
	}
	return -1
}

// AllowsIngest reports whether samples are accepted in this mode
func (m KillSwitchMode) AllowsIngest() bool {
	return m == KillSwitchIngestOnly || m == KillSwitchCustomerReadEnabled
}

// AllowsCustomerRead reports whether customers may see tracking
func (m KillSwitchMode) AllowsCustomerRead() bool {
	return m == KillSwitchCustomerReadEnabled
}

// KillSwitchTransition is the audit record of one mode change
type KillSwitchTransition struct {
	Type   string         `json:"type"`
	Prev   KillSwitchMode `json:"prev"`
	Next   KillSwitchMode `json:"next"`
	Actor  string         `json:"actor"`
	Reason string         `json:"reason"`
	TS     time.Time      `json:"ts"`
}

// KillSwitchState is returned by GET killswitch
type KillSwitchState struct {
	Mode              KillSwitchMode         `json:"mode"`
	RecentTransitions []KillSwitchTransition `json:"recentTransitions"`
}
