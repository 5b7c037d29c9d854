package nutrition

import (
	"time"

	"github.com/healthhub/healthhub/internal/platform/sandbox"
)

type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
	MealSnack     MealType = "snack"
)

func (m MealType) Valid() bool {
	switch m {
	case MealBreakfast, MealLunch, MealDinner, MealSnack:
		return true
	}
	return false
}

type Meal struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	MealType  MealType       `json:"meal_type"`
	Foods     []sandbox.Food `json:"foods"`
	Calories  float64        `json:"calories"`
	ProteinG  float64        `json:"protein_g"`
	CarbsG    float64        `json:"carbs_g"`
	FatG      float64        `json:"fat_g"`
	FiberG    float64        `json:"fiber_g"`
	Source    string         `json:"source,omitempty"`
	EatenAt   time.Time      `json:"eaten_at"`
	CreatedAt time.Time      `json:"created_at"`
}

// MealInput describes a meal to log. Either Foods or Description must be
// set; a description is resolved to foods through the nutrition API.
type MealInput struct {
	Name        string         `json:"name" validate:"max=200"`
	MealType    MealType       `json:"meal_type" validate:"required,oneof=breakfast lunch dinner snack"`
	Description string         `json:"description" validate:"max=500"`
	Foods       []sandbox.Food `json:"foods" validate:"max=50"`
	EatenAt     *time.Time     `json:"eaten_at"`
}

type WaterEntry struct {
	ID       string    `json:"id"`
	AmountML int       `json:"amount_ml"`
	LoggedAt time.Time `json:"logged_at"`
}

type Goals struct {
	Calories float64 `json:"calories" validate:"gte=800,lte=6000"`
	ProteinG float64 `json:"protein_g" validate:"gte=0,lte=400"`
	CarbsG   float64 `json:"carbs_g" validate:"gte=0,lte=1000"`
	FatG     float64 `json:"fat_g" validate:"gte=0,lte=400"`
	WaterML  float64 `json:"water_ml" validate:"gte=0,lte=8000"`
}

func DefaultGoals() Goals {
	return Goals{Calories: 2000, ProteinG: 75, CarbsG: 250, FatG: 70, WaterML: 2000}
}

// DailySummary totals one UTC day.
type DailySummary struct {
	Date      string  `json:"date"`
	MealCount int     `json:"meal_count"`
	Calories  float64 `json:"calories"`
	ProteinG  float64 `json:"protein_g"`
	CarbsG    float64 `json:"carbs_g"`
	FatG      float64 `json:"fat_g"`
	FiberG    float64 `json:"fiber_g"`
	WaterML   float64 `json:"water_ml"`
	Goals     Goals   `json:"goals"`
	// Remaining is the calorie goal minus intake; negative when over.
	Remaining float64 `json:"remaining"`
}
