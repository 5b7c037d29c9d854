package fitness

import (
	"time"

	"github.com/healthhub/healthhub/internal/platform/integrations"
	"github.com/healthhub/healthhub/internal/platform/sandbox"
)

// metPerMinute is a rough kcal/min per workout type for a 70 kg adult.
var metPerMinute = map[string]float64{
	"walking":  4.5,
	"running":  11,
	"cycling":  8,
	"strength": 6,
	"yoga":     3.5,
	"swimming": 9,
	"hiit":     12,
	"other":    5,
}

// WorkoutTypes lists the accepted workout types.
func WorkoutTypes() []string {
	return []string{"cycling", "hiit", "other", "running", "strength", "swimming", "walking", "yoga"}
}

var (
	Goals  = []string{"weight_loss", "strength", "endurance", "general"}
	Levels = []string{"beginner", "intermediate", "advanced"}
)

type Workout struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	DurationMin int       `json:"duration_min"`
	Calories    float64   `json:"calories"`
	Notes       string    `json:"notes,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CreatedAt   time.Time `json:"created_at"`
}

type WorkoutInput struct {
	Type        string     `json:"type" validate:"required"`
	DurationMin int        `json:"duration_min" validate:"required,gt=0,lte=600"`
	Calories    float64    `json:"calories" validate:"gte=0,lte=5000"`
	Notes       string     `json:"notes" validate:"max=500"`
	StartedAt   *time.Time `json:"started_at"`
}

// ActivitySummary is the fitness page payload.
type ActivitySummary struct {
	Days         int                 `json:"days"`
	Source       integrations.Source `json:"source"`
	Steps        []sandbox.Point     `json:"steps"`
	Calories     []sandbox.Point     `json:"calories"`
	HeartRate    []sandbox.Point     `json:"heart_rate"`
	TotalSteps   float64             `json:"total_steps"`
	AvgSteps     float64             `json:"avg_steps"`
	AvgCalories  float64             `json:"avg_calories"`
	AvgRestingHR float64             `json:"avg_resting_hr"`
	Workouts     int                 `json:"workouts"`
	WorkoutMin   int                 `json:"workout_minutes"`
}

type ConnectionStatus struct {
	Configured  bool       `json:"configured"`
	Connected   bool       `json:"connected"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
}

// storedToken is the persisted OAuth token plus bookkeeping.
type storedToken struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry"`
	ConnectedAt  time.Time `json:"connected_at"`
}

type pendingConnect struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
