// Package wellbeing records emotion check-ins and summarises how they trend.
package wellbeing

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

	"github.com/healthhub/healthhub/internal/platform/kvstore"
	"github.com/healthhub/healthhub/internal/platform/sandbox"
)

const (
	historyKey = "emotion_history"
	maxHistory = 1000
	maxDays    = 90
)

var ErrEmotionNotFound = errors.New("emotion check-in not found")

type Service struct {
	history *kvstore.Collection[Emotion]
	now     func() time.Time
}

func NewService(store kvstore.Store, logger zerolog.Logger) *Service {
	return &Service{
		history: kvstore.NewCollection[Emotion](store, historyKey, logger),
		now:     time.Now,
	}
}

func (s *Service) CheckIn(ctx context.Context, userID string, in EmotionInput) (*Emotion, error) {
	mood := Mood(strings.ToLower(strings.TrimSpace(string(in.Mood))))
	if !mood.Valid() {
		return nil, fmt.Errorf("unknown mood %q", in.Mood)
	}
	if in.Intensity < 1 || in.Intensity > 10 {
		return nil, fmt.Errorf("intensity must be between 1 and 10")
	}
	at := s.now().UTC()
	if in.At != nil {
		if in.At.After(at.Add(time.Minute)) {
			return nil, fmt.Errorf("at cannot be in the future")
		}
		at = in.At.UTC()
	}
	e := Emotion{ID: uuid.New().String(), Mood: mood, Intensity: in.Intensity, Note: in.Note, CreatedAt: at}
	err := s.history.Update(ctx, userID, func(items []Emotion) ([]Emotion, error) {
		items = append(items, e)
		sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
		if len(items) > maxHistory {
			items = items[len(items)-maxHistory:]
		}
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// since returns check-ins from the last days days, oldest first. Zero days
// means all.
func (s *Service) since(ctx context.Context, userID string, days int) ([]Emotion, error) {
	items, err := s.history.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if days <= 0 {
		return items, nil
	}
	cutoff := s.now().UTC().AddDate(0, 0, -days)
	out := make([]Emotion, 0, len(items))
	for _, e := range items {
		if e.CreatedAt.After(cutoff) {
			out = append(out, e)
		}
	}
	return out, nil
}

// History returns check-ins newest first.
func (s *Service) History(ctx context.Context, userID string, days int) ([]Emotion, error) {
	items, err := s.since(ctx, userID, days)
	if err != nil {
		return nil, err
	}
	out := make([]Emotion, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		out = append(out, items[i])
	}
	return out, nil
}

// Latest returns the most recent check-in, or nil when there is none.
func (s *Service) Latest(ctx context.Context, userID string) (*Emotion, error) {
	items, err := s.history.Load(ctx, userID)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	e := items[len(items)-1]
	return &e, nil
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.history.Update(ctx, userID, func(items []Emotion) ([]Emotion, error) {
		for i, e := range items {
			if e.ID == id {
				return append(items[:i], items[i+1:]...), nil
			}
		}
		return nil, ErrEmotionNotFound
	})
}

// Scores returns the check-in scores of the last days days, oldest first.
func (s *Service) Scores(ctx context.Context, userID string, days int) ([]float64, error) {
	items, err := s.since(ctx, userID, days)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(items))
	for _, e := range items {
		out = append(out, e.Score())
	}
	return out, nil
}

// Trend summarises the last days days (7 by default): mean intensity per
// mood, a daily mean score and the most frequent mood.
func (s *Service) Trend(ctx context.Context, userID string, days int) (*Trend, error) {
	if days <= 0 {
		days = 7
	}
	if days > maxDays {
		days = maxDays
	}
	items, err := s.since(ctx, userID, days)
	if err != nil {
		return nil, err
	}
	return Summarize(items, days), nil
}

// Summarize builds a trend from check-ins in time order.
func Summarize(items []Emotion, days int) *Trend {
	t := &Trend{Days: days, CheckIns: len(items), ByMood: []MoodTrend{}, Daily: []DailyMood{}}
	if len(items) == 0 {
		return t
	}
	type acc struct{ n, sum int }
	byMood := map[Mood]*acc{}
	var order []string
	daily := map[string]*DailyMood{}
	total := 0.0
	for _, e := range items {
		a, ok := byMood[e.Mood]
		if !ok {
			a = &acc{}
			byMood[e.Mood] = a
		}
		a.n++
		a.sum += e.Intensity

		date := e.CreatedAt.UTC().Format(sandbox.DateLayout)
		d, ok := daily[date]
		if !ok {
			d = &DailyMood{Date: date}
			daily[date] = d
			order = append(order, date)
		}
		d.CheckIns++
		d.Score += e.Score()
		total += e.Score()
	}
	for _, m := range Moods() {
		a, ok := byMood[m]
		if !ok {
			continue
		}
		t.ByMood = append(t.ByMood, MoodTrend{Mood: m, Count: a.n, AvgIntensity: round1(float64(a.sum) / float64(a.n))})
	}
	sort.SliceStable(t.ByMood, func(i, j int) bool { return t.ByMood[i].Count > t.ByMood[j].Count })
	t.Dominant = t.ByMood[0].Mood
	sort.Strings(order)
	for _, date := range order {
		d := daily[date]
		d.Score = round1(d.Score / float64(d.CheckIns))
		t.Daily = append(t.Daily, *d)
	}
	t.AvgScore = round1(total / float64(len(items)))
	return t
}

// Import stores generated check-ins, skipping moods this service does not
// accept.
func (s *Service) Import(ctx context.Context, userID string, moods []sandbox.Mood) (int, error) {
	n := 0
	err := s.history.Update(ctx, userID, func(items []Emotion) ([]Emotion, error) {
		for _, m := range moods {
			mood := Mood(m.Mood)
			if !mood.Valid() || m.Intensity < 1 || m.Intensity > 10 {
				continue
			}
			items = append(items, Emotion{ID: uuid.New().String(), Mood: mood, Intensity: m.Intensity, Note: m.Note, CreatedAt: m.CreatedAt.UTC()})
			n++
		}
		sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
		if len(items) > maxHistory {
			items = items[len(items)-maxHistory:]
		}
		return items, nil
	})
	return n, err
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
