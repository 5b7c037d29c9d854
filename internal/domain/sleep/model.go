package sleep

import (
	"time"

	"github.com/healthhub/healthhub/internal/platform/sandbox"
)

const (
	SourceManual   = "manual"
	SourceWearable = "wearable"
)

var stageNames = map[string]bool{"light": true, "deep": true, "rem": true, "awake": true}

type Session struct {
	ID        string               `json:"id"`
	Start     time.Time            `json:"start"`
	End       time.Time            `json:"end"`
	Quality   int                  `json:"quality"`
	Stages    []sandbox.SleepStage `json:"stages,omitempty"`
	Notes     string               `json:"notes,omitempty"`
	Source    string               `json:"source"`
	CreatedAt time.Time            `json:"created_at"`
}

// Hours is the time between Start and End.
func (s Session) Hours() float64 {
	return s.End.Sub(s.Start).Hours()
}

type SessionInput struct {
	Start   time.Time            `json:"start" validate:"required"`
	End     time.Time            `json:"end" validate:"required"`
	Quality int                  `json:"quality" validate:"required,gte=1,lte=5"`
	Stages  []sandbox.SleepStage `json:"stages" validate:"max=4"`
	Notes   string               `json:"notes" validate:"max=500"`
}

type Stats struct {
	Days   int `json:"days"`
	Nights int `json:"nights"`
	// Source is "manual", or the wearable source when nothing was logged.
	Source     string  `json:"source"`
	AvgHours   float64 `json:"avg_hours"`
	AvgQuality float64 `json:"avg_quality"`
	// Consistency is the standard deviation of bedtimes in minutes.
	Consistency  float64        `json:"consistency_minutes"`
	StageMinutes map[string]int `json:"stage_minutes"`
	Score        int            `json:"score"`
}
