package sandbox

import (
	"time"
)

// SleepStage is the time spent in one stage during a night.
type SleepStage struct {
	Stage   string `json:"stage"`
	Minutes int    `json:"minutes"`
}

type SleepSession struct {
	Start   time.Time    `json:"start"`
	End     time.Time    `json:"end"`
	Quality int          `json:"quality"`
	Stages  []SleepStage `json:"stages"`
}

// SleepSessions generates one night per day, each ending on that day.
func (g *Generator) SleepSessions(n int, end time.Time) []SleepSession {
	out := []SleepSession{}
	for _, d := range days(n, end) {
		bed := d.Add(-time.Duration(g.between(60, 150)) * time.Minute) // 21:30 to 23:00 the evening before
		minutes := g.between(360, 510)
		deep := minutes * g.between(13, 23) / 100
		rem := minutes * g.between(18, 25) / 100
		awake := g.between(5, 30)
		light := minutes - deep - rem - awake
		quality := 3
		switch {
		case minutes >= 450 && awake < 15:
			quality = 5
		case minutes >= 420:
			quality = 4
		case minutes < 390:
			quality = 2
		}
		out = append(out, SleepSession{
			Start:   bed,
			End:     bed.Add(time.Duration(minutes) * time.Minute),
			Quality: quality,
			Stages: []SleepStage{
				{Stage: "light", Minutes: light},
				{Stage: "deep", Minutes: deep},
				{Stage: "rem", Minutes: rem},
				{Stage: "awake", Minutes: awake},
			},
		})
	}
	return out
}

type Meal struct {
	Name     string    `json:"name"`
	MealType string    `json:"meal_type"`
	Foods    []Food    `json:"foods"`
	EatenAt  time.Time `json:"eaten_at"`
}

var mealMenus = map[string][]string{
	"breakfast": {"oatmeal and a banana", "2 eggs and bread", "yogurt with almonds", "milk and oatmeal"},
	"lunch":     {"chicken breast and salad", "pasta and broccoli", "rice and chicken breast", "salad with avocado"},
	"dinner":    {"salmon and rice", "steak and potato", "chicken breast and broccoli", "pasta with cheese"},
	"snack":     {"apple", "almonds", "orange", "yogurt"},
}

var mealHours = map[string]int{"breakfast": 8, "lunch": 13, "snack": 16, "dinner": 19}

// Meals generates breakfast, lunch and dinner for each day plus the odd snack.
func (g *Generator) Meals(n int, end time.Time) []Meal {
	out := []Meal{}
	for _, d := range days(n, end) {
		types := []string{"breakfast", "lunch", "dinner"}
		if g.rng.Intn(2) == 0 {
			types = append(types, "snack")
		}
		for _, mt := range types {
			desc := g.pick(mealMenus[mt])
			out = append(out, Meal{
				Name:     desc,
				MealType: mt,
				Foods:    LookupFoods(desc),
				EatenAt:  d.Add(time.Duration(mealHours[mt])*time.Hour + time.Duration(g.between(0, 45))*time.Minute),
			})
		}
	}
	return out
}

type Workout struct {
	Type        string    `json:"type"`
	DurationMin int       `json:"duration_min"`
	Calories    float64   `json:"calories"`
	StartedAt   time.Time `json:"started_at"`
}

var workoutKinds = []struct {
	name      string
	kcalPerMi float64
}{
	{"walking", 4.5}, {"running", 11}, {"cycling", 8}, {"strength", 6}, {"yoga", 3.5}, {"swimming", 9},
}

// Workouts generates a workout on roughly half of the days.
func (g *Generator) Workouts(n int, end time.Time) []Workout {
	out := []Workout{}
	for _, d := range days(n, end) {
		if g.rng.Intn(2) == 0 {
			continue
		}
		k := workoutKinds[g.rng.Intn(len(workoutKinds))]
		dur := g.between(20, 70)
		out = append(out, Workout{
			Type:        k.name,
			DurationMin: dur,
			Calories:    round(float64(dur)*k.kcalPerMi, 0),
			StartedAt:   d.Add(time.Duration(g.between(6, 19)) * time.Hour),
		})
	}
	return out
}

type Medication struct {
	Name      string   `json:"name"`
	Dosage    string   `json:"dosage"`
	Frequency string   `json:"frequency"`
	Times     []string `json:"times"`
	Notes     string   `json:"notes,omitempty"`
}

var medicationPool = []Medication{
	{Name: "lisinopril", Dosage: "10 mg", Frequency: "once daily", Times: []string{"08:00"}, Notes: "for blood pressure"},
	{Name: "metformin", Dosage: "500 mg", Frequency: "twice daily", Times: []string{"08:00", "20:00"}, Notes: "take with meals"},
	{Name: "atorvastatin", Dosage: "20 mg", Frequency: "once daily", Times: []string{"21:00"}},
	{Name: "vitamin d", Dosage: "1000 IU", Frequency: "once daily", Times: []string{"08:00"}},
	{Name: "ibuprofen", Dosage: "200 mg", Frequency: "as-needed", Notes: "for headaches"},
	{Name: "levothyroxine", Dosage: "50 mcg", Frequency: "once daily", Times: []string{"07:00"}, Notes: "empty stomach"},
}

// Medications picks two to four medications.
func (g *Generator) Medications() []Medication {
	idx := g.rng.Perm(len(medicationPool))
	n := g.between(2, 4)
	out := make([]Medication, 0, n)
	for _, i := range idx[:n] {
		m := medicationPool[i]
		m.Times = append([]string(nil), m.Times...)
		out = append(out, m)
	}
	return out
}

type Mood struct {
	Mood      string    `json:"mood"`
	Intensity int       `json:"intensity"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

var moods = []string{"happy", "calm", "anxious", "sad", "stressed", "energetic", "tired"}

// Moods generates one emotion check-in per day.
func (g *Generator) Moods(n int, end time.Time) []Mood {
	out := []Mood{}
	for _, d := range days(n, end) {
		out = append(out, Mood{
			Mood:      g.pick(moods),
			Intensity: g.between(3, 9),
			CreatedAt: d.Add(time.Duration(g.between(9, 21)) * time.Hour),
		})
	}
	return out
}

type WorkoutExercise struct {
	Name        string `json:"name"`
	Sets        int    `json:"sets,omitempty"`
	Reps        int    `json:"reps,omitempty"`
	DurationMin int    `json:"duration_min,omitempty"`
}

type WorkoutDay struct {
	Day       string            `json:"day"`
	Focus     string            `json:"focus"`
	Exercises []WorkoutExercise `json:"exercises"`
}

type WorkoutPlan struct {
	Goal  string       `json:"goal"`
	Level string       `json:"level"`
	Days  []WorkoutDay `json:"days"`
}

var planFocus = map[string][]string{
	"weight_loss": {"cardio", "full body", "cardio", "core", "cardio"},
	"strength":    {"upper body", "lower body", "rest", "push", "pull"},
	"endurance":   {"long run", "intervals", "cross training", "tempo", "recovery"},
	"general":     {"full body", "cardio", "mobility", "full body", "cardio"},
}

var focusExercises = map[string][]WorkoutExercise{
	"cardio":         {{Name: "brisk walk", DurationMin: 30}, {Name: "jump rope", DurationMin: 10}},
	"full body":      {{Name: "squats", Sets: 3, Reps: 12}, {Name: "push-ups", Sets: 3, Reps: 10}, {Name: "rows", Sets: 3, Reps: 12}},
	"core":           {{Name: "plank", DurationMin: 3}, {Name: "dead bug", Sets: 3, Reps: 10}},
	"upper body":     {{Name: "bench press", Sets: 4, Reps: 8}, {Name: "overhead press", Sets: 3, Reps: 8}},
	"lower body":     {{Name: "deadlift", Sets: 4, Reps: 6}, {Name: "lunges", Sets: 3, Reps: 10}},
	"push":           {{Name: "dips", Sets: 3, Reps: 10}, {Name: "push-ups", Sets: 3, Reps: 15}},
	"pull":           {{Name: "pull-ups", Sets: 3, Reps: 6}, {Name: "rows", Sets: 3, Reps: 10}},
	"rest":           {{Name: "stretching", DurationMin: 15}},
	"long run":       {{Name: "easy run", DurationMin: 50}},
	"intervals":      {{Name: "400m repeats", Sets: 6, Reps: 1}},
	"cross training": {{Name: "cycling", DurationMin: 40}},
	"tempo":          {{Name: "tempo run", DurationMin: 30}},
	"recovery":       {{Name: "easy walk", DurationMin: 30}, {Name: "foam rolling", DurationMin: 10}},
	"mobility":       {{Name: "yoga flow", DurationMin: 25}},
}

var levelScale = map[string]float64{"beginner": 0.7, "intermediate": 1, "advanced": 1.3}

var weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday"}

// WorkoutPlanFor builds a five-day plan. Unknown goals fall back to "general"
// and unknown levels to "beginner".
func WorkoutPlanFor(goal, level string) WorkoutPlan {
	focus, ok := planFocus[goal]
	if !ok {
		goal = "general"
		focus = planFocus[goal]
	}
	scale, ok := levelScale[level]
	if !ok {
		level = "beginner"
		scale = levelScale[level]
	}
	plan := WorkoutPlan{Goal: goal, Level: level}
	for i, f := range focus {
		var ex []WorkoutExercise
		for _, e := range focusExercises[f] {
			if e.Sets > 0 {
				e.Sets = maxInt(1, int(round(float64(e.Sets)*scale, 0)))
			}
			if e.DurationMin > 0 {
				e.DurationMin = maxInt(5, int(round(float64(e.DurationMin)*scale, 0)))
			}
			ex = append(ex, e)
		}
		plan.Days = append(plan.Days, WorkoutDay{Day: weekdays[i], Focus: f, Exercises: ex})
	}
	return plan
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
