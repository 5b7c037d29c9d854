package main

import (
	"context"
	"fmt"

	"github.com/healthhub/healthhub/internal/platform/sandbox"
)

// seedUser generates days of history for userID and imports it into every
// tracker. Records that clash with existing data are skipped, so the result
// counts what was actually stored.
func seedUser(ctx context.Context, a *app, userID string, days int) (*sandbox.SeedResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("--user is required")
	}
	seeder := sandbox.NewSeeder(sandbox.SeedConfig{Days: days, Outliers: true, Seed: a.cfg.MockSeed})
	ds, res := seeder.Generate(userID)

	if err := a.profiles.Import(ctx, userID, ds.Profile); err != nil {
		a.logger.Warn().Err(err).Str("user_id", userID).Msg("profile not seeded")
	}

	var err error
	if res.Sleep, err = a.sleep.Import(ctx, userID, ds.Sleep); err != nil {
		return nil, fmt.Errorf("seed sleep: %w", err)
	}
	if res.Meals, err = a.nutrition.Import(ctx, userID, ds.Meals); err != nil {
		return nil, fmt.Errorf("seed meals: %w", err)
	}
	if res.Workouts, err = a.fitness.Import(ctx, userID, ds.Workouts); err != nil {
		return nil, fmt.Errorf("seed workouts: %w", err)
	}
	if res.Medications, err = a.medications.Import(ctx, userID, ds.Medications); err != nil {
		return nil, fmt.Errorf("seed medications: %w", err)
	}
	if res.Moods, err = a.wellbeing.Import(ctx, userID, ds.Moods); err != nil {
		return nil, fmt.Errorf("seed moods: %w", err)
	}
	res.Total = res.Sleep + res.Meals + res.Workouts + res.Medications + res.Moods

	a.logger.Info().Str("user_id", userID).Int("records", res.Total).Msg("seeded sample data")
	return res, nil
}
