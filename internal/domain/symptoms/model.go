package symptoms

import (
	"time"

	"github.com/healthhub/healthhub/internal/domain/healthgraph"
)

type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyModerate Urgency = "moderate"
	UrgencyHigh     Urgency = "high"
)

// Urgency cut-offs on the highest risk level found.
const (
	HighRiskLevel     = 1.5
	ModerateRiskLevel = 0.7
)

// ConditionMatch is a condition linked to at least one reported symptom.
type ConditionMatch struct {
	Name     string   `json:"name"`
	Score    float64  `json:"score"`
	Symptoms []string `json:"symptoms"`
}

type CheckResult struct {
	ID           string                            `json:"id"`
	Symptoms     []string                          `json:"symptoms"`
	Unknown      []string                          `json:"unknown"`
	Conditions   []ConditionMatch                  `json:"conditions"`
	RiskPaths    map[string][]healthgraph.RiskPath `json:"risk_paths"`
	MaxRiskLevel float64                           `json:"max_risk_level"`
	Urgency      Urgency                           `json:"urgency"`
	Advice       string                            `json:"advice"`
	CheckedAt    time.Time                         `json:"checked_at"`
}

// UrgencyFor maps a risk level to an urgency band.
func UrgencyFor(level float64) Urgency {
	switch {
	case level >= HighRiskLevel:
		return UrgencyHigh
	case level >= ModerateRiskLevel:
		return UrgencyModerate
	}
	return UrgencyLow
}

var advice = map[Urgency]string{
	UrgencyHigh:     "Your symptoms are linked to serious risks. Seek medical care promptly, and call emergency services if symptoms are severe or sudden.",
	UrgencyModerate: "Consider booking an appointment with a doctor in the next few days, sooner if symptoms get worse.",
	UrgencyLow:      "Your symptoms are not strongly linked to serious risks. Rest, monitor them and see a doctor if they persist.",
}
