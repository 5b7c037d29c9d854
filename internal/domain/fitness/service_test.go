package fitness

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/healthhub/healthhub/internal/platform/auth"
	"github.com/healthhub/healthhub/internal/platform/integrations"
	wearable "github.com/healthhub/healthhub/internal/platform/integrations/fitness"
	"github.com/healthhub/healthhub/internal/platform/kvstore"
	"github.com/healthhub/healthhub/internal/platform/sandbox"
	"github.com/healthhub/healthhub/internal/platform/validate"
)

var fixedNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

// fakeWearable returns live data when given a token source, mock otherwise.
type fakeWearable struct {
	refreshTo string
	codes     map[string]*oauth2.Token
}

func (f *fakeWearable) Configured() bool { return true }

func (f *fakeWearable) AuthCodeURL(state string) (string, error) {
	return "https://wearable.test/authorize?state=" + state, nil
}

func (f *fakeWearable) Exchange(_ context.Context, code string) (*oauth2.Token, error) {
	tok, ok := f.codes[code]
	if !ok {
		return nil, errors.New("invalid_grant")
	}
	return tok, nil
}

func (f *fakeWearable) TokenSource(_ context.Context, tok *oauth2.Token) oauth2.TokenSource {
	if f.refreshTo != "" {
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: f.refreshTo, Expiry: fixedNow.Add(time.Hour)})
	}
	return oauth2.StaticTokenSource(tok)
}

func source(ts oauth2.TokenSource) integrations.Source {
	if ts == nil {
		return integrations.SourceMock
	}
	return integrations.SourceLive
}

func (f *fakeWearable) Activity(_ context.Context, ts oauth2.TokenSource, _ string, days int) (wearable.Activity, integrations.Source) {
	act := wearable.Activity{}
	for i := 0; i < days; i++ {
		d := fixedNow.AddDate(0, 0, i-days+1).Format(sandbox.DateLayout)
		act.Steps = append(act.Steps, sandbox.Point{Date: d, Value: 8000})
		act.Calories = append(act.Calories, sandbox.Point{Date: d, Value: 2000})
	}
	return act, source(ts)
}

func (f *fakeWearable) HeartRate(_ context.Context, ts oauth2.TokenSource, _ string, days int) ([]sandbox.Point, integrations.Source) {
	return []sandbox.Point{{Date: "2024-03-14", Value: 60}, {Date: "2024-03-15", Value: 64}}, source(ts)
}

func (f *fakeWearable) Sleep(_ context.Context, ts oauth2.TokenSource, _ string, days int) ([]sandbox.SleepSession, integrations.Source) {
	end := time.Date(2024, 3, 15, 7, 0, 0, 0, time.UTC)
	return []sandbox.SleepSession{{Start: end.Add(-7 * time.Hour), End: end, Quality: 4}}, source(ts)
}

func newTestService() (*Service, *fakeWearable) {
	fw := &fakeWearable{codes: map[string]*oauth2.Token{
		"good": {AccessToken: "a1", RefreshToken: "r1", TokenType: "Bearer", Expiry: fixedNow.Add(time.Hour)},
	}}
	s := NewService(kvstore.NewMemoryStore(), fw, zerolog.Nop())
	s.now = func() time.Time { return fixedNow }
	return s, fw
}

func stateFrom(t *testing.T, authURL string) string {
	t.Helper()
	i := strings.Index(authURL, "state=")
	if i < 0 {
		t.Fatalf("no state in %s", authURL)
	}
	return authURL[i+len("state="):]
}

func TestConnectFlow(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()

	u, err := s.ConnectURL(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	state := stateFrom(t, u)

	userID, err := s.Callback(ctx, state, "good")
	if err != nil {
		t.Fatal(err)
	}
	if userID != "u1" {
		t.Errorf("expected u1, got %s", userID)
	}
	st, err := s.Status(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if !st.Connected || st.ConnectedAt == nil {
		t.Errorf("expected connected status, got %+v", st)
	}

	if _, err := s.Callback(ctx, state, "good"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("state must be single use, got %v", err)
	}

	if err := s.Disconnect(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if st, _ := s.Status(ctx, "u1"); st.Connected {
		t.Error("expected disconnected")
	}
}

func TestCallback_ExpiredState(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()
	u, _ := s.ConnectURL(ctx, "u1")
	s.now = func() time.Time { return fixedNow.Add(stateTTL + time.Minute) }
	if _, err := s.Callback(ctx, stateFrom(t, u), "good"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
}

func TestCallback_UnknownState(t *testing.T) {
	s, _ := newTestService()
	if _, err := s.Callback(context.Background(), "nope", "good"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
}

func TestActivity_SourceFollowsConnection(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()

	sum, err := s.Activity(ctx, "u1", 3)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Source != integrations.SourceMock || sum.Days != 3 || sum.TotalSteps != 24000 {
		t.Errorf("unexpected disconnected summary %+v", sum)
	}
	if sum.AvgRestingHR != 62 {
		t.Errorf("expected avg resting hr 62, got %v", sum.AvgRestingHR)
	}

	u, _ := s.ConnectURL(ctx, "u1")
	if _, err := s.Callback(ctx, stateFrom(t, u), "good"); err != nil {
		t.Fatal(err)
	}
	sum, err = s.Activity(ctx, "u1", 3)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Source != integrations.SourceLive {
		t.Errorf("expected live once connected, got %s", sum.Source)
	}
}

func TestActivity_PersistsRefreshedToken(t *testing.T) {
	s, fw := newTestService()
	ctx := context.Background()
	u, _ := s.ConnectURL(ctx, "u1")
	if _, err := s.Callback(ctx, stateFrom(t, u), "good"); err != nil {
		t.Fatal(err)
	}
	fw.refreshTo = "a2"
	if _, err := s.Activity(ctx, "u1", 3); err != nil {
		t.Fatal(err)
	}
	tok, ok, err := s.tokens.Get(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("expected stored token, got %v %v", ok, err)
	}
	if tok.AccessToken != "a2" || tok.RefreshToken != "r1" {
		t.Errorf("expected refreshed access token with original refresh token, got %+v", tok)
	}
}

func TestActivity_CountsRecentWorkouts(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()
	old := fixedNow.AddDate(0, 0, -10)
	_, _ = s.LogWorkout(ctx, "u1", WorkoutInput{Type: "running", DurationMin: 30})
	_, _ = s.LogWorkout(ctx, "u1", WorkoutInput{Type: "yoga", DurationMin: 45, StartedAt: &old})

	sum, err := s.Activity(ctx, "u1", 7)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Workouts != 1 || sum.WorkoutMin != 30 {
		t.Errorf("expected only the recent workout counted, got %d/%d", sum.Workouts, sum.WorkoutMin)
	}
}

func TestVitals(t *testing.T) {
	s, _ := newTestService()
	v, src, err := s.Vitals(context.Background(), "u1", 5)
	if err != nil {
		t.Fatal(err)
	}
	if src != integrations.SourceMock {
		t.Errorf("expected mock source, got %s", src)
	}
	if len(v.Steps) != 5 || len(v.SleepHours) != 1 || v.SleepHours[0].Value != 7 {
		t.Errorf("unexpected vitals %+v", v)
	}
}

func TestSleepHours_MergesSameDay(t *testing.T) {
	wake := time.Date(2024, 3, 15, 7, 0, 0, 0, time.UTC)
	nap := time.Date(2024, 3, 15, 15, 30, 0, 0, time.UTC)
	earlier := time.Date(2024, 3, 14, 6, 30, 0, 0, time.UTC)
	pts := SleepHours([]sandbox.SleepSession{
		{Start: wake.Add(-6 * time.Hour), End: wake},
		{Start: nap.Add(-30 * time.Minute), End: nap},
		{Start: earlier.Add(-8 * time.Hour), End: earlier},
	})
	if len(pts) != 2 {
		t.Fatalf("expected 2 days, got %+v", pts)
	}
	if pts[0].Date != "2024-03-14" || pts[0].Value != 8 || pts[1].Value != 6.5 {
		t.Errorf("unexpected points %+v", pts)
	}
}

func TestLogWorkout(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()

	w, err := s.LogWorkout(ctx, "u1", WorkoutInput{Type: " Running ", DurationMin: 30})
	if err != nil {
		t.Fatal(err)
	}
	if w.Type != "running" || w.Calories != 330 {
		t.Errorf("expected estimated 330 kcal run, got %+v", w)
	}
	w2, err := s.LogWorkout(ctx, "u1", WorkoutInput{Type: "cycling", DurationMin: 60, Calories: 420})
	if err != nil {
		t.Fatal(err)
	}
	if w2.Calories != 420 {
		t.Errorf("explicit calories must be kept, got %v", w2.Calories)
	}

	future := fixedNow.Add(time.Hour)
	for name, in := range map[string]WorkoutInput{
		"unknown type": {Type: "curling", DurationMin: 10},
		"no duration":  {Type: "yoga"},
		"future":       {Type: "yoga", DurationMin: 10, StartedAt: &future},
	} {
		if _, err := s.LogWorkout(ctx, "u1", in); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}

	if err := s.DeleteWorkout(ctx, "u1", w.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteWorkout(ctx, "u1", w.ID); !errors.Is(err, ErrWorkoutNotFound) {
		t.Errorf("expected ErrWorkoutNotFound, got %v", err)
	}
	ws, _ := s.ListWorkouts(ctx, "u1")
	if len(ws) != 1 || ws[0].ID != w2.ID {
		t.Errorf("expected only the cycling workout left, got %+v", ws)
	}
}

func TestPlan(t *testing.T) {
	s, _ := newTestService()
	p, err := s.Plan("", "")
	if err != nil {
		t.Fatal(err)
	}
	if p.Goal != "general" || p.Level != "beginner" || len(p.Days) != 5 {
		t.Errorf("unexpected default plan %+v", p)
	}
	if _, err := s.Plan("bulk", "advanced"); err == nil {
		t.Error("expected error for unknown goal")
	}
	if _, err := s.Plan("strength", "elite"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestHandler_ConnectAndCallback(t *testing.T) {
	s, _ := newTestService()
	e := echo.New()
	e.Validator = validate.New()
	NewHandler(s).RegisterRoutes(e.Group("/api/v1/dashboard"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/fitness/connect", nil)
	req = req.WithContext(auth.WithUser(req.Context(), "u1", []string{auth.RoleUser}))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	state := strings.TrimSuffix(strings.TrimSpace(body[strings.Index(body, "state=")+len("state="):]), `"}`)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, CallbackPath+"?state="+state+"&code=good", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from callback, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, CallbackPath+"?error=access_denied", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for declined authorization, got %d", rec.Code)
	}
}

func TestHandler_LogWorkoutValidation(t *testing.T) {
	s, _ := newTestService()
	e := echo.New()
	e.Validator = validate.New()
	NewHandler(s).RegisterRoutes(e.Group("/api/v1/dashboard"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/dashboard/fitness/workouts", strings.NewReader(`{"type":"running","duration_min":0}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = req.WithContext(auth.WithUser(req.Context(), "u1", []string{auth.RoleUser}))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestImport(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()
	n, err := s.Import(ctx, "u1", []sandbox.Workout{
		{Type: "Running", DurationMin: 30, StartedAt: fixedNow.Add(-2 * time.Hour)},
		{Type: "curling", DurationMin: 30, StartedAt: fixedNow},
		{Type: "yoga", DurationMin: 40, Calories: 150, StartedAt: fixedNow.Add(-time.Hour)},
	})
	if err != nil || n != 2 {
		t.Fatalf("expected two imported workouts, got %d, %v", n, err)
	}
	items, _ := s.ListWorkouts(ctx, "u1")
	if len(items) != 2 || items[0].Type != "yoga" || items[0].Calories != 150 {
		t.Fatalf("unexpected workouts: %+v", items)
	}
	if items[1].Calories != 330 {
		t.Errorf("expected estimated 330 kcal for 30 min running, got %v", items[1].Calories)
	}
}
