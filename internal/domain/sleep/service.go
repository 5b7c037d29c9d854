// Package sleep logs sleep sessions and scores the past week.
package sleep

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthhub/healthhub/internal/domain/anomaly"
	"github.com/healthhub/healthhub/internal/platform/integrations"
	"github.com/healthhub/healthhub/internal/platform/kvstore"
	"github.com/healthhub/healthhub/internal/platform/sandbox"
)

const (
	sessionsKey = "sleep_sessions"
	maxSession  = 16 * time.Hour
	maxDays     = 90
)

var (
	ErrSessionNotFound = errors.New("sleep session not found")
	ErrOverlap         = errors.New("sleep session overlaps an existing one")
)

// WearableSleep supplies nights from a connected device or mock data.
type WearableSleep interface {
	SleepSessions(ctx context.Context, userID string, days int) ([]sandbox.SleepSession, integrations.Source, error)
}

type Service struct {
	sessions *kvstore.Collection[Session]
	wearable WearableSleep
	now      func() time.Time
}

func NewService(store kvstore.Store, wearable WearableSleep, logger zerolog.Logger) *Service {
	return &Service{
		sessions: kvstore.NewCollection[Session](store, sessionsKey, logger),
		wearable: wearable,
		now:      time.Now,
	}
}

func (s *Service) Log(ctx context.Context, userID string, in SessionInput) (*Session, error) {
	if in.Start.IsZero() || in.End.IsZero() {
		return nil, fmt.Errorf("start and end are required")
	}
	if !in.End.After(in.Start) {
		return nil, fmt.Errorf("end must be after start")
	}
	if in.End.Sub(in.Start) > maxSession {
		return nil, fmt.Errorf("a session cannot be longer than %s", maxSession)
	}
	if in.End.After(s.now().Add(time.Minute)) {
		return nil, fmt.Errorf("end cannot be in the future")
	}
	if in.Quality < 1 || in.Quality > 5 {
		return nil, fmt.Errorf("quality must be between 1 and 5")
	}
	total := 0
	for _, st := range in.Stages {
		if !stageNames[st.Stage] {
			return nil, fmt.Errorf("unknown sleep stage %q", st.Stage)
		}
		if st.Minutes < 0 {
			return nil, fmt.Errorf("stage minutes must not be negative")
		}
		total += st.Minutes
	}
	if float64(total) > in.End.Sub(in.Start).Minutes()+1 {
		return nil, fmt.Errorf("stage minutes exceed the session length")
	}

	sess := Session{
		ID:        uuid.New().String(),
		Start:     in.Start.UTC(),
		End:       in.End.UTC(),
		Quality:   in.Quality,
		Stages:    in.Stages,
		Notes:     in.Notes,
		Source:    SourceManual,
		CreatedAt: s.now().UTC(),
	}
	err := s.sessions.Update(ctx, userID, func(items []Session) ([]Session, error) {
		for _, it := range items {
			if sess.Start.Before(it.End) && it.Start.Before(sess.End) {
				return nil, ErrOverlap
			}
		}
		return append(items, sess), nil
	})
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// Import stores seeded nights as wearable sessions, skipping any that
// overlap what is already logged.
func (s *Service) Import(ctx context.Context, userID string, nights []sandbox.SleepSession) (int, error) {
	n := 0
	err := s.sessions.Update(ctx, userID, func(items []Session) ([]Session, error) {
		now := s.now().UTC()
	next:
		for _, night := range nights {
			if !night.End.After(night.Start) {
				continue
			}
			for _, it := range items {
				if night.Start.Before(it.End) && it.Start.Before(night.End) {
					continue next
				}
			}
			items = append(items, Session{
				ID:        uuid.New().String(),
				Start:     night.Start.UTC(),
				End:       night.End.UTC(),
				Quality:   night.Quality,
				Stages:    night.Stages,
				Source:    SourceWearable,
				CreatedAt: now,
			})
			n++
		}
		sort.SliceStable(items, func(i, j int) bool { return items[i].Start.Before(items[j].Start) })
		return items, nil
	})
	return n, err
}

// List returns logged sessions that ended within the last days days,
// newest first. Zero days means all.
func (s *Service) List(ctx context.Context, userID string, days int) ([]Session, error) {
	items, err := s.sessions.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	var cutoff time.Time
	if days > 0 {
		cutoff = s.now().AddDate(0, 0, -days)
	}
	out := make([]Session, 0, len(items))
	for _, it := range items {
		if it.End.After(cutoff) {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].End.After(out[j].End) })
	return out, nil
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.sessions.Update(ctx, userID, func(items []Session) ([]Session, error) {
		for i, it := range items {
			if it.ID == id {
				return append(items[:i], items[i+1:]...), nil
			}
		}
		return nil, ErrSessionNotFound
	})
}

// Stats scores the last days days. With nothing logged in that window the
// wearable's nights are used instead.
func (s *Service) Stats(ctx context.Context, userID string, days int) (*Stats, error) {
	if days <= 0 {
		days = 7
	}
	if days > maxDays {
		days = maxDays
	}
	sessions, err := s.List(ctx, userID, days)
	if err != nil {
		return nil, err
	}
	src := SourceManual
	if len(sessions) == 0 && s.wearable != nil {
		nights, wsrc, err := s.wearable.SleepSessions(ctx, userID, days)
		if err != nil {
			return nil, err
		}
		src = string(wsrc)
		for _, n := range nights {
			sessions = append(sessions, Session{Start: n.Start, End: n.End, Quality: n.Quality, Stages: n.Stages, Source: SourceWearable})
		}
	}
	return Summarize(sessions, days, src), nil
}

// Summarize computes stats over sessions.
func Summarize(sessions []Session, days int, src string) *Stats {
	st := &Stats{Days: days, Nights: len(sessions), Source: src, StageMinutes: map[string]int{}}
	if len(sessions) == 0 {
		return st
	}
	hours := make([]float64, 0, len(sessions))
	bedtimes := make([]float64, 0, len(sessions))
	quality := 0
	for _, s := range sessions {
		hours = append(hours, s.Hours())
		bedtimes = append(bedtimes, bedtimeMinutes(s.Start))
		quality += s.Quality
		for _, stage := range s.Stages {
			st.StageMinutes[stage.Stage] += stage.Minutes
		}
	}
	st.AvgHours = round1(anomaly.Summarize(hours).Mean)
	st.AvgQuality = round1(float64(quality) / float64(len(sessions)))
	st.Consistency = round1(anomaly.Summarize(bedtimes).StdDev)
	st.Score = Score(st.AvgHours, st.AvgQuality, st.Consistency)
	return st
}

// bedtimeMinutes counts minutes from noon so that 23:30 and 00:30 are an
// hour apart rather than 23 hours.
func bedtimeMinutes(t time.Time) float64 {
	t = t.UTC()
	m := t.Hour()*60 + t.Minute() - 12*60
	if m < 0 {
		m += 24 * 60
	}
	return float64(m)
}

// Score combines duration (50), quality (30) and bedtime consistency (20)
// into a 0-100 score.
func Score(avgHours, avgQuality, consistency float64) int {
	duration := 50.0
	switch {
	case avgHours < 7:
		duration -= (7 - avgHours) * 10
	case avgHours > 9:
		duration -= (avgHours - 9) * 10
	}
	qual := avgQuality / 5 * 30
	cons := 20.0
	if consistency > 30 {
		cons = 20 * (1 - (consistency-30)/90)
	}
	total := math.Max(duration, 0) + math.Max(qual, 0) + math.Max(cons, 0)
	return int(math.Round(math.Min(total, 100)))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
