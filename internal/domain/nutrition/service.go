// Package nutrition logs meals and water and totals them against goals.
package nutrition

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthhub/healthhub/internal/platform/integrations"
	"github.com/healthhub/healthhub/internal/platform/kvstore"
	"github.com/healthhub/healthhub/internal/platform/sandbox"
)

const (
	mealsKey = "meals"
	waterKey = "water_log"
	goalsKey = "nutrition_goals"

	maxWaterML = 5000
)

var (
	ErrMealNotFound = errors.New("meal not found")
	ErrNoFoods      = errors.New("no foods could be resolved from the description")
)

// FoodSearcher resolves free text to foods.
type FoodSearcher interface {
	NaturalLanguage(ctx context.Context, query string) ([]sandbox.Food, integrations.Source, error)
}

type Service struct {
	foods FoodSearcher
	meals *kvstore.Collection[Meal]
	water *kvstore.Collection[WaterEntry]
	goals *kvstore.Value[Goals]
	now   func() time.Time
}

func NewService(store kvstore.Store, foods FoodSearcher, logger zerolog.Logger) *Service {
	return &Service{
		foods: foods,
		meals: kvstore.NewCollection[Meal](store, mealsKey, logger),
		water: kvstore.NewCollection[WaterEntry](store, waterKey, logger),
		goals: kvstore.NewValue[Goals](store, goalsKey, logger),
		now:   time.Now,
	}
}

// SearchFoods looks up foods for query.
func (s *Service) SearchFoods(ctx context.Context, query string) ([]sandbox.Food, integrations.Source, error) {
	if strings.TrimSpace(query) == "" {
		return nil, "", fmt.Errorf("query is required")
	}
	return s.foods.NaturalLanguage(ctx, query)
}

func (s *Service) LogMeal(ctx context.Context, userID string, in MealInput) (*Meal, error) {
	if !in.MealType.Valid() {
		return nil, fmt.Errorf("meal_type must be one of breakfast, lunch, dinner, snack")
	}
	now := s.now().UTC()
	m := &Meal{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(in.Name),
		MealType:  in.MealType,
		Foods:     in.Foods,
		EatenAt:   now,
		CreatedAt: now,
	}
	if in.EatenAt != nil {
		if in.EatenAt.After(now.Add(time.Hour)) {
			return nil, fmt.Errorf("eaten_at cannot be in the future")
		}
		m.EatenAt = in.EatenAt.UTC()
	}
	if len(m.Foods) == 0 {
		desc := strings.TrimSpace(in.Description)
		if desc == "" {
			return nil, fmt.Errorf("foods or description is required")
		}
		foods, src, err := s.foods.NaturalLanguage(ctx, desc)
		if err != nil {
			return nil, err
		}
		if len(foods) == 0 {
			return nil, ErrNoFoods
		}
		m.Foods, m.Source = foods, string(src)
		if m.Name == "" {
			m.Name = desc
		}
	}
	if err := m.total(); err != nil {
		return nil, err
	}
	if m.Name == "" {
		m.Name = string(m.MealType)
	}
	if err := s.meals.Append(ctx, userID, *m); err != nil {
		return nil, err
	}
	return m, nil
}

// Import stores seeded meals, skipping ones with an unknown meal type or
// invalid foods.
func (s *Service) Import(ctx context.Context, userID string, meals []sandbox.Meal) (int, error) {
	n := 0
	err := s.meals.Update(ctx, userID, func(items []Meal) ([]Meal, error) {
		now := s.now().UTC()
		for _, rec := range meals {
			m := Meal{
				ID:        uuid.New().String(),
				Name:      rec.Name,
				MealType:  MealType(rec.MealType),
				Foods:     rec.Foods,
				Source:    string(integrations.SourceMock),
				EatenAt:   rec.EatenAt.UTC(),
				CreatedAt: now,
			}
			if !m.MealType.Valid() || len(m.Foods) == 0 || m.total() != nil {
				continue
			}
			items = append(items, m)
			n++
		}
		sort.SliceStable(items, func(i, j int) bool { return items[i].EatenAt.Before(items[j].EatenAt) })
		return items, nil
	})
	return n, err
}

// total sums the macros of m's foods.
func (m *Meal) total() error {
	m.Calories, m.ProteinG, m.CarbsG, m.FatG, m.FiberG = 0, 0, 0, 0, 0
	for _, f := range m.Foods {
		if f.Name == "" || f.Calories < 0 {
			return fmt.Errorf("each food needs a name and non-negative calories")
		}
		m.Calories += f.Calories
		m.ProteinG += f.ProteinG
		m.CarbsG += f.CarbsG
		m.FatG += f.FatG
		m.FiberG += f.FiberG
	}
	m.Calories, m.ProteinG, m.CarbsG, m.FatG, m.FiberG =
		round1(m.Calories), round1(m.ProteinG), round1(m.CarbsG), round1(m.FatG), round1(m.FiberG)
	return nil
}

// ListMeals returns meals eaten on day (UTC) newest first, or every meal
// when day is zero.
func (s *Service) ListMeals(ctx context.Context, userID string, day time.Time) ([]Meal, error) {
	items, err := s.meals.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]Meal, 0, len(items))
	for _, m := range items {
		if day.IsZero() || sameDay(m.EatenAt, day) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EatenAt.After(out[j].EatenAt) })
	return out, nil
}

func (s *Service) DeleteMeal(ctx context.Context, userID, id string) error {
	return s.meals.Update(ctx, userID, func(items []Meal) ([]Meal, error) {
		for i, m := range items {
			if m.ID == id {
				return append(items[:i], items[i+1:]...), nil
			}
		}
		return nil, ErrMealNotFound
	})
}

func (s *Service) LogWater(ctx context.Context, userID string, amountML int) (*WaterEntry, error) {
	if amountML <= 0 || amountML > maxWaterML {
		return nil, fmt.Errorf("amount_ml must be between 1 and %d", maxWaterML)
	}
	w := &WaterEntry{ID: uuid.New().String(), AmountML: amountML, LoggedAt: s.now().UTC()}
	if err := s.water.Append(ctx, userID, *w); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *Service) Goals(ctx context.Context, userID string) (Goals, error) {
	g, ok, err := s.goals.Get(ctx, userID)
	if err != nil {
		return Goals{}, err
	}
	if !ok {
		return DefaultGoals(), nil
	}
	return g, nil
}

func (s *Service) UpdateGoals(ctx context.Context, userID string, g Goals) (Goals, error) {
	if g.Calories <= 0 {
		return Goals{}, fmt.Errorf("calories goal must be positive")
	}
	if err := s.goals.Put(ctx, userID, g); err != nil {
		return Goals{}, err
	}
	return g, nil
}

// Summary totals meals and water for the UTC day containing day.
func (s *Service) Summary(ctx context.Context, userID string, day time.Time) (*DailySummary, error) {
	if day.IsZero() {
		day = s.now()
	}
	meals, err := s.ListMeals(ctx, userID, day)
	if err != nil {
		return nil, err
	}
	water, err := s.water.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	goals, err := s.Goals(ctx, userID)
	if err != nil {
		return nil, err
	}
	sum := &DailySummary{Date: day.UTC().Format(sandbox.DateLayout), MealCount: len(meals), Goals: goals}
	for _, m := range meals {
		sum.Calories += m.Calories
		sum.ProteinG += m.ProteinG
		sum.CarbsG += m.CarbsG
		sum.FatG += m.FatG
		sum.FiberG += m.FiberG
	}
	for _, w := range water {
		if sameDay(w.LoggedAt, day) {
			sum.WaterML += float64(w.AmountML)
		}
	}
	sum.Calories, sum.ProteinG, sum.CarbsG, sum.FatG, sum.FiberG =
		round1(sum.Calories), round1(sum.ProteinG), round1(sum.CarbsG), round1(sum.FatG), round1(sum.FiberG)
	sum.Remaining = round1(goals.Calories - sum.Calories)
	return sum, nil
}

func sameDay(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// ParseDay parses a YYYY-MM-DD query value; empty means zero time.
func ParseDay(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(sandbox.DateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD")
	}
	return t, nil
}
