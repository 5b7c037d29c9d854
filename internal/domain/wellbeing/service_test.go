package wellbeing

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

	"github.com/healthhub/healthhub/internal/platform/auth"
	"github.com/healthhub/healthhub/internal/platform/kvstore"
	"github.com/healthhub/healthhub/internal/platform/sandbox"
	"github.com/healthhub/healthhub/internal/platform/validate"
)

var fixedNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestService() *Service {
	s := NewService(kvstore.NewMemoryStore(), zerolog.Nop())
	s.now = func() time.Time { return fixedNow }
	return s
}

func at(day, hour int) *time.Time {
	t := time.Date(2024, 3, day, hour, 0, 0, 0, time.UTC)
	return &t
}

func seed(t *testing.T, s *Service) {
	t.Helper()
	for _, in := range []EmotionInput{
		{Mood: MoodHappy, Intensity: 6, At: at(14, 20)},
		{Mood: MoodAnxious, Intensity: 5, At: at(1, 9)},
		{Mood: MoodHappy, Intensity: 8, At: at(10, 9)},
		{Mood: MoodSad, Intensity: 6, At: at(12, 9)},
		{Mood: "Calm", Intensity: 4, At: at(14, 9)},
	} {
		if _, err := s.CheckIn(context.Background(), "u1", in); err != nil {
			t.Fatal(err)
		}
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		e    Emotion
		want float64
	}{
		{Emotion{Mood: MoodHappy, Intensity: 10}, 10},
		{Emotion{Mood: MoodCalm, Intensity: 1}, 5.5},
		{Emotion{Mood: MoodSad, Intensity: 10}, 1},
		{Emotion{Mood: MoodStressed, Intensity: 2}, 5},
		{Emotion{Mood: MoodNeutral, Intensity: 7}, 5.5},
	}
	for _, tt := range tests {
		if got := tt.e.Score(); got != tt.want {
			t.Errorf("%s/%d: got %v, want %v", tt.e.Mood, tt.e.Intensity, got, tt.want)
		}
	}
}

func TestCheckIn_Validation(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	if _, err := s.CheckIn(ctx, "u1", EmotionInput{Mood: "bored", Intensity: 5}); err == nil {
		t.Error("expected error for unknown mood")
	}
	if _, err := s.CheckIn(ctx, "u1", EmotionInput{Mood: MoodHappy, Intensity: 11}); err == nil {
		t.Error("expected error for intensity out of range")
	}
	if _, err := s.CheckIn(ctx, "u1", EmotionInput{Mood: MoodHappy, Intensity: 5, At: at(16, 9)}); err == nil {
		t.Error("expected error for a future check-in")
	}
	e, err := s.CheckIn(ctx, "u1", EmotionInput{Mood: " HAPPY ", Intensity: 5})
	if err != nil || e.Mood != MoodHappy || !e.CreatedAt.Equal(fixedNow) {
		t.Errorf("expected normalized check-in at now, got %+v, %v", e, err)
	}
}

func TestHistoryAndLatest(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	seed(t, s)

	items, err := s.History(ctx, "u1", 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 4 || items[0].Mood != MoodHappy || items[3].Mood != MoodHappy {
		t.Errorf("expected the last week newest first, got %+v", items)
	}
	all, _ := s.History(ctx, "u1", 0)
	if len(all) != 5 {
		t.Errorf("expected all check-ins, got %d", len(all))
	}
	latest, _ := s.Latest(ctx, "u1")
	if latest == nil || !latest.CreatedAt.Equal(*at(14, 20)) {
		t.Errorf("unexpected latest %+v", latest)
	}
	if none, err := s.Latest(ctx, "u2"); none != nil || err != nil {
		t.Errorf("expected nil latest for a new user, got %+v, %v", none, err)
	}
}

func TestTrend(t *testing.T) {
	s := newTestService()
	seed(t, s)
	tr, err := s.Trend(context.Background(), "u1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if tr.Days != 7 || tr.CheckIns != 4 || tr.Dominant != MoodHappy || tr.AvgScore != 6.8 {
		t.Errorf("unexpected trend %+v", tr)
	}
	wantMoods := []MoodTrend{{MoodHappy, 2, 7}, {MoodCalm, 1, 4}, {MoodSad, 1, 6}}
	if len(tr.ByMood) != len(wantMoods) {
		t.Fatalf("unexpected by-mood %+v", tr.ByMood)
	}
	for i, w := range wantMoods {
		if tr.ByMood[i] != w {
			t.Errorf("by-mood %d: got %+v, want %+v", i, tr.ByMood[i], w)
		}
	}
	wantDaily := []DailyMood{{"2024-03-10", 1, 9}, {"2024-03-12", 1, 3}, {"2024-03-14", 2, 7.5}}
	for i, w := range wantDaily {
		if tr.Daily[i] != w {
			t.Errorf("daily %d: got %+v, want %+v", i, tr.Daily[i], w)
		}
	}

	scores, _ := s.Scores(context.Background(), "u1", 7)
	if len(scores) != 4 || scores[0] != 9 || scores[3] != 8 {
		t.Errorf("expected scores oldest first, got %v", scores)
	}
}

func TestTrend_Empty(t *testing.T) {
	tr, err := newTestService().Trend(context.Background(), "u1", 30)
	if err != nil {
		t.Fatal(err)
	}
	if tr.CheckIns != 0 || tr.Dominant != "" || len(tr.Daily) != 0 {
		t.Errorf("expected empty trend, got %+v", tr)
	}
}

func TestDelete(t *testing.T) {
	s := newTestService()
	e, _ := s.CheckIn(context.Background(), "u1", EmotionInput{Mood: MoodCalm, Intensity: 3})
	if err := s.Delete(context.Background(), "u1", e.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(context.Background(), "u1", e.ID); !errors.Is(err, ErrEmotionNotFound) {
		t.Errorf("expected ErrEmotionNotFound, got %v", err)
	}
}

func TestImport(t *testing.T) {
	s := newTestService()
	moods := []sandbox.Mood{
		{Mood: "happy", Intensity: 7, CreatedAt: *at(13, 10)},
		{Mood: "bored", Intensity: 4, CreatedAt: *at(12, 10)},
		{Mood: "tired", Intensity: 5, CreatedAt: *at(11, 10)},
	}
	n, err := s.Import(context.Background(), "u1", moods)
	if err != nil || n != 2 {
		t.Fatalf("expected two imported, got %d, %v", n, err)
	}
	items, _ := s.History(context.Background(), "u1", 0)
	if items[0].Mood != MoodHappy || items[1].Mood != MoodTired {
		t.Errorf("expected imported check-ins in time order, got %+v", items)
	}
}

func TestHandler_CheckIn(t *testing.T) {
	e := echo.New()
	e.Validator = validate.New()
	NewHandler(newTestService()).RegisterRoutes(e.Group("/api/v1/dashboard"))

	post := func(body string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/dashboard/wellbeing/emotions", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req = req.WithContext(auth.WithUser(req.Context(), "u1", []string{auth.RoleUser}))
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}
	if code := post(`{"mood":"calm","intensity":6}`); code != http.StatusCreated {
		t.Errorf("expected 201, got %d", code)
	}
	if code := post(`{"mood":"calm","intensity":0}`); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
	if code := post(`{"mood":"bored","intensity":5}`); code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown mood, got %d", code)
	}
}
