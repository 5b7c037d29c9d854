// Package dashboard assembles the landing page: recent vitals and their
// anomalies, insights, today's medication schedule, the next video visit and
// the latest mood.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthhub/healthhub/internal/domain/anomaly"
	"github.com/healthhub/healthhub/internal/domain/insights"
	"github.com/healthhub/healthhub/internal/domain/medication"
	"github.com/healthhub/healthhub/internal/domain/nutrition"
	"github.com/healthhub/healthhub/internal/domain/sleep"
	"github.com/healthhub/healthhub/internal/domain/telemedicine"
	"github.com/healthhub/healthhub/internal/domain/wellbeing"
	"github.com/healthhub/healthhub/internal/platform/integrations"
	"github.com/healthhub/healthhub/internal/platform/sandbox"
	"github.com/healthhub/healthhub/internal/platform/telemetry"
)

const (
	vitalsDays = 30
	recentDays = 7
)

type VitalsSource interface {
	Vitals(ctx context.Context, userID string, days int) (sandbox.Vitals, integrations.Source, error)
}

type NutritionSource interface {
	Summary(ctx context.Context, userID string, day time.Time) (*nutrition.DailySummary, error)
}

type SleepSource interface {
	Stats(ctx context.Context, userID string, days int) (*sleep.Stats, error)
}

type MoodSource interface {
	Scores(ctx context.Context, userID string, days int) ([]float64, error)
	Latest(ctx context.Context, userID string) (*wellbeing.Emotion, error)
}

type MedicationSource interface {
	DueToday(ctx context.Context, userID string) ([]medication.ScheduledDose, error)
}

type AppointmentSource interface {
	Next(ctx context.Context, userID string) (*telemedicine.Appointment, error)
}

type UnreadCounter interface {
	UnreadCount(ctx context.Context, userID string) (int, error)
}

// Sources are the services the dashboard reads from. Nil sources are
// skipped.
type Sources struct {
	Vitals        VitalsSource
	Nutrition     NutritionSource
	Sleep         SleepSource
	Mood          MoodSource
	Medications   MedicationSource
	Appointments  AppointmentSource
	Notifications UnreadCounter
}

type Service struct {
	src      Sources
	detector *anomaly.Detector
	metrics  *telemetry.Collector
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(src Sources, detector *anomaly.Detector, logger zerolog.Logger) *Service {
	return &Service{src: src, detector: detector, logger: logger, now: time.Now}
}

// SetMetrics attaches an optional metrics collector.
func (s *Service) SetMetrics(m *telemetry.Collector) {
	s.metrics = m
}

type Counts struct {
	DosesDue            int `json:"doses_due"`
	DosesTaken          int `json:"doses_taken"`
	Anomalies           int `json:"anomalies"`
	UnreadNotifications int `json:"unread_notifications"`
}

type Overview struct {
	GeneratedAt     time.Time                  `json:"generated_at"`
	Source          integrations.Source        `json:"source"`
	Vitals          sandbox.Vitals             `json:"vitals"`
	Latest          map[string]float64         `json:"latest"`
	Anomalies       map[string]anomaly.Result  `json:"anomalies"`
	Insights        []insights.Insight         `json:"insights"`
	Medications     []medication.ScheduledDose `json:"medications_today"`
	NextAppointment *telemedicine.Appointment  `json:"next_appointment"`
	Mood            *wellbeing.Emotion         `json:"mood"`
	Sleep           *sleep.Stats               `json:"sleep,omitempty"`
	Nutrition       *nutrition.DailySummary    `json:"nutrition,omitempty"`
	Counts          Counts                     `json:"counts"`
}

// state is what both Overview and Snapshot read.
type state struct {
	vitals    sandbox.Vitals
	source    integrations.Source
	anomalies map[string]anomaly.Result
	sleep     *sleep.Stats
	nutrition *nutrition.DailySummary
	moods     []float64
}

func (s *Service) load(ctx context.Context, userID string) (*state, error) {
	st := &state{anomalies: map[string]anomaly.Result{}}
	if s.src.Vitals != nil {
		v, src, err := s.src.Vitals.Vitals(ctx, userID, vitalsDays)
		if err != nil {
			return nil, fmt.Errorf("vitals: %w", err)
		}
		st.vitals, st.source = v, src
		st.anomalies = s.detector.DetectNamed(v.Map())
		if s.metrics != nil {
			s.metrics.AddAnomalies(anomaly.Count(st.anomalies))
		}
	}
	if s.src.Sleep != nil {
		stats, err := s.src.Sleep.Stats(ctx, userID, recentDays)
		if err != nil {
			return nil, fmt.Errorf("sleep: %w", err)
		}
		st.sleep = stats
	}
	if s.src.Nutrition != nil {
		sum, err := s.src.Nutrition.Summary(ctx, userID, s.now())
		if err != nil {
			return nil, fmt.Errorf("nutrition: %w", err)
		}
		st.nutrition = sum
	}
	if s.src.Mood != nil {
		scores, err := s.src.Mood.Scores(ctx, userID, recentDays)
		if err != nil {
			return nil, fmt.Errorf("mood: %w", err)
		}
		st.moods = scores
	}
	return st, nil
}

// Snapshot summarises the last week for the insight rules.
func (s *Service) Snapshot(ctx context.Context, userID string) (insights.Snapshot, error) {
	st, err := s.load(ctx, userID)
	if err != nil {
		return insights.Snapshot{}, err
	}
	return st.snapshot(), nil
}

func (st *state) snapshot() insights.Snapshot {
	snap := insights.Snapshot{
		AvgSleepHours:    recentMean(st.vitals.SleepHours),
		AvgSteps:         recentMean(st.vitals.Steps),
		RestingHeartRate: recentMean(st.vitals.HeartRate),
		CaloriesOut:      last(st.vitals.Calories),
		MoodScores:       st.moods,
		Anomalies:        st.anomalies,
	}
	// Logged nights take precedence over the wearable series.
	if st.sleep != nil && st.sleep.Nights > 0 {
		snap.AvgSleepHours = st.sleep.AvgHours
	}
	if st.nutrition != nil {
		snap.CaloriesIn = st.nutrition.Calories
		snap.WaterML = st.nutrition.WaterML
		snap.WaterGoalML = st.nutrition.Goals.WaterML
	}
	return snap
}

func (s *Service) Overview(ctx context.Context, userID string) (*Overview, error) {
	st, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := &Overview{
		GeneratedAt: s.now().UTC(),
		Source:      st.source,
		Vitals:      st.vitals,
		Latest:      map[string]float64{},
		Anomalies:   st.anomalies,
		Insights:    insights.Generate(st.snapshot()),
		Medications: []medication.ScheduledDose{},
		Sleep:       st.sleep,
		Nutrition:   st.nutrition,
	}
	for name, points := range map[string][]sandbox.Point{
		sandbox.MetricHeartRate:  st.vitals.HeartRate,
		sandbox.MetricSteps:      st.vitals.Steps,
		sandbox.MetricCalories:   st.vitals.Calories,
		sandbox.MetricSleepHours: st.vitals.SleepHours,
	} {
		if len(points) > 0 {
			out.Latest[name] = last(points)
		}
	}
	out.Counts.Anomalies = anomaly.Count(st.anomalies)

	if s.src.Medications != nil {
		doses, err := s.src.Medications.DueToday(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("medications: %w", err)
		}
		out.Medications = doses
		for _, d := range doses {
			out.Counts.DosesDue++
			if d.Status == medication.DoseTaken {
				out.Counts.DosesTaken++
			}
		}
	}
	if s.src.Appointments != nil {
		next, err := s.src.Appointments.Next(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("appointments: %w", err)
		}
		out.NextAppointment = next
	}
	if s.src.Mood != nil {
		mood, err := s.src.Mood.Latest(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("mood: %w", err)
		}
		out.Mood = mood
	}
	if s.src.Notifications != nil {
		n, err := s.src.Notifications.UnreadCount(ctx, userID)
		if err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("unread count unavailable")
		}
		out.Counts.UnreadNotifications = n
	}
	return out, nil
}

// recentMean averages the last recentDays points.
func recentMean(points []sandbox.Point) float64 {
	if len(points) > recentDays {
		points = points[len(points)-recentDays:]
	}
	return anomaly.Summarize(sandbox.Values(points)).Mean
}

func last(points []sandbox.Point) float64 {
	if len(points) == 0 {
		return 0
	}
	return points[len(points)-1].Value
}
