package sandbox

import (
	"encoding/json"
	"io"
	"time"
)

// SeedConfig controls the volume and shape of a generated dataset.
type SeedConfig struct {
	Days     int   `json:"days"`
	Outliers bool  `json:"outliers"`
	Seed     int64 `json:"seed"`
}

// DefaultSeedConfig returns 30 days of data with outliers injected.
func DefaultSeedConfig() SeedConfig {
	return SeedConfig{Days: 30, Outliers: true, Seed: 42}
}

// Dataset is everything generated for one user.
type Dataset struct {
	UserID      string         `json:"user_id"`
	Profile     Profile        `json:"profile"`
	Vitals      Vitals         `json:"vitals"`
	Sleep       []SleepSession `json:"sleep"`
	Meals       []Meal         `json:"meals"`
	Workouts    []Workout      `json:"workouts"`
	Medications []Medication   `json:"medications"`
	Moods       []Mood         `json:"moods"`
}

// SeedResult counts what a dataset contains.
type SeedResult struct {
	Days        int           `json:"days"`
	Sleep       int           `json:"sleep"`
	Meals       int           `json:"meals"`
	Workouts    int           `json:"workouts"`
	Medications int           `json:"medications"`
	Moods       int           `json:"moods"`
	Total       int           `json:"total"`
	Duration    time.Duration `json:"duration"`
}

// Seeder generates datasets from a fixed config.
type Seeder struct {
	config SeedConfig
	now    func() time.Time
}

func NewSeeder(config SeedConfig) *Seeder {
	if config.Days <= 0 {
		config.Days = DefaultSeedConfig().Days
	}
	return &Seeder{config: config, now: time.Now}
}

// Config returns the effective configuration.
func (s *Seeder) Config() SeedConfig { return s.config }

// Generate builds the dataset for userID ending today.
func (s *Seeder) Generate(userID string) (*Dataset, *SeedResult) {
	start := time.Now()
	end := s.now()
	g := NewGenerator(s.config.Seed, userID)
	ds := &Dataset{
		UserID:      userID,
		Profile:     g.Profile(),
		Vitals:      g.Vitals(s.config.Days, end, s.config.Outliers),
		Sleep:       g.SleepSessions(s.config.Days, end),
		Meals:       g.Meals(s.config.Days, end),
		Workouts:    g.Workouts(s.config.Days, end),
		Medications: g.Medications(),
		Moods:       g.Moods(s.config.Days, end),
	}
	res := &SeedResult{
		Days:        s.config.Days,
		Sleep:       len(ds.Sleep),
		Meals:       len(ds.Meals),
		Workouts:    len(ds.Workouts),
		Medications: len(ds.Medications),
		Moods:       len(ds.Moods),
	}
	res.Total = res.Sleep + res.Meals + res.Workouts + res.Medications + res.Moods
	res.Duration = time.Since(start)
	return ds, res
}

// WriteJSON writes the dataset as indented JSON.
func (d *Dataset) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}
