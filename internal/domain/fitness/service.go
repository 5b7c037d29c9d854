// Package fitness serves activity data from a connected wearable, or mock
// data when none is connected, and keeps the user's workout log.
package fitness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/healthhub/healthhub/internal/platform/integrations"
	wearable "github.com/healthhub/healthhub/internal/platform/integrations/fitness"
	"github.com/healthhub/healthhub/internal/platform/kvstore"
	"github.com/healthhub/healthhub/internal/platform/sandbox"
)

const (
	workoutsKey = "workouts"
	tokenKey    = "fitness_token"

	// stateNamespace holds pending OAuth states, keyed by state.
	stateNamespace = "_oauth_state"
	stateTTL       = 10 * time.Minute
)

var (
	ErrWorkoutNotFound = errors.New("workout not found")
	ErrInvalidState    = errors.New("invalid or expired authorization state")
)

// Wearable is the subset of the wearable client the service uses.
type Wearable interface {
	Configured() bool
	AuthCodeURL(state string) (string, error)
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	TokenSource(ctx context.Context, tok *oauth2.Token) oauth2.TokenSource
	Activity(ctx context.Context, ts oauth2.TokenSource, userID string, days int) (wearable.Activity, integrations.Source)
	HeartRate(ctx context.Context, ts oauth2.TokenSource, userID string, days int) ([]sandbox.Point, integrations.Source)
	Sleep(ctx context.Context, ts oauth2.TokenSource, userID string, days int) ([]sandbox.SleepSession, integrations.Source)
}

type Service struct {
	client   Wearable
	store    kvstore.Store
	workouts *kvstore.Collection[Workout]
	tokens   *kvstore.Value[storedToken]
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(store kvstore.Store, client Wearable, logger zerolog.Logger) *Service {
	return &Service{
		client:   client,
		store:    store,
		workouts: kvstore.NewCollection[Workout](store, workoutsKey, logger),
		tokens:   kvstore.NewValue[storedToken](store, tokenKey, logger),
		logger:   logger,
		now:      time.Now,
	}
}

// -- OAuth connection --

// ConnectURL starts the authorization flow for userID.
func (s *Service) ConnectURL(ctx context.Context, userID string) (string, error) {
	state := uuid.New().String()
	raw, err := json.Marshal(pendingConnect{UserID: userID, CreatedAt: s.now().UTC()})
	if err != nil {
		return "", err
	}
	u, err := s.client.AuthCodeURL(state)
	if err != nil {
		return "", err
	}
	if err := s.store.Put(ctx, stateNamespace, state, raw); err != nil {
		return "", fmt.Errorf("save state: %w", err)
	}
	return u, nil
}

// Callback completes the flow and stores the token for the user that
// started it. It returns that user's id.
func (s *Service) Callback(ctx context.Context, state, code string) (string, error) {
	if state == "" || code == "" {
		return "", ErrInvalidState
	}
	raw, err := s.store.Get(ctx, stateNamespace, state)
	if errors.Is(err, kvstore.ErrNotFound) {
		return "", ErrInvalidState
	}
	if err != nil {
		return "", err
	}
	// States are single use.
	if err := s.store.Delete(ctx, stateNamespace, state); err != nil {
		return "", err
	}
	var pc pendingConnect
	if err := json.Unmarshal(raw, &pc); err != nil || s.now().Sub(pc.CreatedAt) > stateTTL {
		return "", ErrInvalidState
	}

	tok, err := s.client.Exchange(ctx, code)
	if err != nil {
		return "", err
	}
	st := storedToken{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
		ConnectedAt:  s.now().UTC(),
	}
	if err := s.tokens.Put(ctx, pc.UserID, st); err != nil {
		return "", err
	}
	return pc.UserID, nil
}

func (s *Service) Disconnect(ctx context.Context, userID string) error {
	return s.tokens.Delete(ctx, userID)
}

func (s *Service) Status(ctx context.Context, userID string) (ConnectionStatus, error) {
	st := ConnectionStatus{Configured: s.client.Configured()}
	tok, ok, err := s.tokens.Get(ctx, userID)
	if err != nil {
		return st, err
	}
	if ok {
		st.Connected = true
		at := tok.ConnectedAt
		st.ConnectedAt = &at
	}
	return st, nil
}

// tokenSource returns nil when the user has not connected a device.
func (s *Service) tokenSource(ctx context.Context, userID string) (oauth2.TokenSource, *storedToken, error) {
	st, ok, err := s.tokens.Get(ctx, userID)
	if err != nil || !ok {
		return nil, nil, err
	}
	tok := &oauth2.Token{
		AccessToken:  st.AccessToken,
		TokenType:    st.TokenType,
		RefreshToken: st.RefreshToken,
		Expiry:       st.Expiry,
	}
	return s.client.TokenSource(ctx, tok), &st, nil
}

// persistRefresh saves a token the source refreshed during a call.
func (s *Service) persistRefresh(ctx context.Context, userID string, ts oauth2.TokenSource, prev *storedToken) {
	if ts == nil || prev == nil {
		return
	}
	tok, err := ts.Token()
	if err != nil || tok.AccessToken == prev.AccessToken {
		return
	}
	next := *prev
	next.AccessToken, next.Expiry = tok.AccessToken, tok.Expiry
	if tok.RefreshToken != "" {
		next.RefreshToken = tok.RefreshToken
	}
	if err := s.tokens.Put(ctx, userID, next); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to persist refreshed fitness token")
	}
}

// -- Activity --

// worst returns the least trustworthy of the sources seen.
func worst(sources ...integrations.Source) integrations.Source {
	out := integrations.SourceLive
	for _, src := range sources {
		switch {
		case src == integrations.SourceMock:
			return integrations.SourceMock
		case src == integrations.SourceCache:
			out = integrations.SourceCache
		}
	}
	return out
}

func (s *Service) Activity(ctx context.Context, userID string, days int) (*ActivitySummary, error) {
	ts, prev, err := s.tokenSource(ctx, userID)
	if err != nil {
		return nil, err
	}
	act, src1 := s.client.Activity(ctx, ts, userID, days)
	hr, src2 := s.client.HeartRate(ctx, ts, userID, days)
	s.persistRefresh(ctx, userID, ts, prev)

	sum := &ActivitySummary{
		Days:      len(act.Steps),
		Source:    worst(src1, src2),
		Steps:     act.Steps,
		Calories:  act.Calories,
		HeartRate: hr,
	}
	for _, v := range sandbox.Values(act.Steps) {
		sum.TotalSteps += v
	}
	sum.AvgSteps = avg(sandbox.Values(act.Steps))
	sum.AvgCalories = avg(sandbox.Values(act.Calories))
	sum.AvgRestingHR = avg(sandbox.Values(hr))

	if len(act.Steps) > 0 {
		since, _ := time.Parse(sandbox.DateLayout, act.Steps[0].Date)
		ws, err := s.ListWorkouts(ctx, userID)
		if err != nil {
			return nil, err
		}
		for _, w := range ws {
			if !w.StartedAt.Before(since) {
				sum.Workouts++
				sum.WorkoutMin += w.DurationMin
			}
		}
	}
	return sum, nil
}

// Vitals returns the four dashboard series for the last days days.
func (s *Service) Vitals(ctx context.Context, userID string, days int) (sandbox.Vitals, integrations.Source, error) {
	ts, prev, err := s.tokenSource(ctx, userID)
	if err != nil {
		return sandbox.Vitals{}, "", err
	}
	act, src1 := s.client.Activity(ctx, ts, userID, days)
	hr, src2 := s.client.HeartRate(ctx, ts, userID, days)
	sleep, src3 := s.client.Sleep(ctx, ts, userID, days)
	s.persistRefresh(ctx, userID, ts, prev)

	v := sandbox.Vitals{HeartRate: hr, Steps: act.Steps, Calories: act.Calories, SleepHours: SleepHours(sleep)}
	return v, worst(src1, src2, src3), nil
}

// SleepSessions exposes the wearable's nights for the sleep tracker.
func (s *Service) SleepSessions(ctx context.Context, userID string, days int) ([]sandbox.SleepSession, integrations.Source, error) {
	ts, prev, err := s.tokenSource(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	sessions, src := s.client.Sleep(ctx, ts, userID, days)
	s.persistRefresh(ctx, userID, ts, prev)
	return sessions, src, nil
}

// SleepHours turns sessions into one point per wake-up date. Two sessions
// ending on the same date are added together.
func SleepHours(sessions []sandbox.SleepSession) []sandbox.Point {
	byDate := map[string]float64{}
	var dates []string
	for _, ss := range sessions {
		d := ss.End.Format(sandbox.DateLayout)
		if _, ok := byDate[d]; !ok {
			dates = append(dates, d)
		}
		byDate[d] += ss.End.Sub(ss.Start).Hours()
	}
	sort.Strings(dates)
	out := make([]sandbox.Point, 0, len(dates))
	for _, d := range dates {
		out = append(out, sandbox.Point{Date: d, Value: math.Round(byDate[d]*10) / 10})
	}
	return out
}

// -- Workouts --

func (s *Service) LogWorkout(ctx context.Context, userID string, in WorkoutInput) (*Workout, error) {
	typ := strings.ToLower(strings.TrimSpace(in.Type))
	rate, ok := metPerMinute[typ]
	if !ok {
		return nil, fmt.Errorf("type must be one of: %s", strings.Join(WorkoutTypes(), ", "))
	}
	if in.DurationMin <= 0 {
		return nil, fmt.Errorf("duration_min must be positive")
	}
	now := s.now().UTC()
	w := &Workout{
		ID:          uuid.New().String(),
		Type:        typ,
		DurationMin: in.DurationMin,
		Calories:    in.Calories,
		Notes:       in.Notes,
		StartedAt:   now,
		CreatedAt:   now,
	}
	if in.StartedAt != nil {
		if in.StartedAt.After(now) {
			return nil, fmt.Errorf("started_at cannot be in the future")
		}
		w.StartedAt = in.StartedAt.UTC()
	}
	if w.Calories == 0 {
		w.Calories = math.Round(rate * float64(in.DurationMin))
	}
	if err := s.workouts.Append(ctx, userID, *w); err != nil {
		return nil, err
	}
	return w, nil
}

// Import stores seeded workouts, skipping unknown types.
func (s *Service) Import(ctx context.Context, userID string, workouts []sandbox.Workout) (int, error) {
	n := 0
	err := s.workouts.Update(ctx, userID, func(items []Workout) ([]Workout, error) {
		now := s.now().UTC()
		for _, rec := range workouts {
			typ := strings.ToLower(rec.Type)
			rate, ok := metPerMinute[typ]
			if !ok || rec.DurationMin <= 0 {
				continue
			}
			w := Workout{
				ID:          uuid.New().String(),
				Type:        typ,
				DurationMin: rec.DurationMin,
				Calories:    rec.Calories,
				StartedAt:   rec.StartedAt.UTC(),
				CreatedAt:   now,
			}
			if w.Calories <= 0 {
				w.Calories = math.Round(rate * float64(rec.DurationMin))
			}
			items = append(items, w)
			n++
		}
		sort.SliceStable(items, func(i, j int) bool { return items[i].StartedAt.Before(items[j].StartedAt) })
		return items, nil
	})
	return n, err
}

// ListWorkouts returns the log newest first.
func (s *Service) ListWorkouts(ctx context.Context, userID string) ([]Workout, error) {
	items, err := s.workouts.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].StartedAt.After(items[j].StartedAt) })
	return items, nil
}

func (s *Service) DeleteWorkout(ctx context.Context, userID, id string) error {
	return s.workouts.Update(ctx, userID, func(items []Workout) ([]Workout, error) {
		for i, w := range items {
			if w.ID == id {
				return append(items[:i], items[i+1:]...), nil
			}
		}
		return nil, ErrWorkoutNotFound
	})
}

// Plan builds a weekly plan. Empty goal or level pick the defaults;
// anything else must be a known value.
func (s *Service) Plan(goal, level string) (sandbox.WorkoutPlan, error) {
	if goal == "" {
		goal = "general"
	}
	if level == "" {
		level = "beginner"
	}
	if !contains(Goals, goal) {
		return sandbox.WorkoutPlan{}, fmt.Errorf("goal must be one of: %s", strings.Join(Goals, ", "))
	}
	if !contains(Levels, level) {
		return sandbox.WorkoutPlan{}, fmt.Errorf("level must be one of: %s", strings.Join(Levels, ", "))
	}
	return sandbox.WorkoutPlanFor(goal, level), nil
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func avg(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return math.Round(sum/float64(len(v))*10) / 10
}
