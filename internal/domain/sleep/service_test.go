package sleep

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
	"github.com/healthhub/healthhub/internal/platform/integrations"
	"github.com/healthhub/healthhub/internal/platform/kvstore"
	"github.com/healthhub/healthhub/internal/platform/sandbox"
	"github.com/healthhub/healthhub/internal/platform/validate"
)

var fixedNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

type fakeWearable struct {
	nights []sandbox.SleepSession
	calls  int
}

func (f *fakeWearable) SleepSessions(context.Context, string, int) ([]sandbox.SleepSession, integrations.Source, error) {
	f.calls++
	return f.nights, integrations.SourceMock, nil
}

func newTestService(fw WearableSleep) *Service {
	s := NewService(kvstore.NewMemoryStore(), fw, zerolog.Nop())
	s.now = func() time.Time { return fixedNow }
	return s
}

// night returns a session starting at bed on the given March day.
func night(day, bedHour, bedMin int, hours float64, quality int) SessionInput {
	start := time.Date(2024, 3, day, bedHour, bedMin, 0, 0, time.UTC)
	return SessionInput{Start: start, End: start.Add(time.Duration(hours * float64(time.Hour))), Quality: quality}
}

func TestLog_Validation(t *testing.T) {
	s := newTestService(nil)
	ctx := context.Background()
	good := night(13, 23, 0, 8, 4)

	tests := []struct {
		name string
		in   SessionInput
	}{
		{"end before start", SessionInput{Start: good.End, End: good.Start, Quality: 3}},
		{"too long", night(13, 20, 0, 17, 3)},
		{"future", night(15, 23, 0, 8, 3)},
		{"quality", night(13, 23, 0, 8, 6)},
		{"bad stage", SessionInput{Start: good.Start, End: good.End, Quality: 3, Stages: []sandbox.SleepStage{{Stage: "dreaming", Minutes: 30}}}},
		{"stages too long", SessionInput{Start: good.Start, End: good.End, Quality: 3, Stages: []sandbox.SleepStage{{Stage: "deep", Minutes: 600}}}},
	}
	for _, tt := range tests {
		if _, err := s.Log(ctx, "u1", tt.in); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
	if _, err := s.Log(ctx, "u1", good); err != nil {
		t.Fatalf("valid session rejected: %v", err)
	}
}

func TestLog_RejectsOverlap(t *testing.T) {
	s := newTestService(nil)
	ctx := context.Background()
	if _, err := s.Log(ctx, "u1", night(13, 23, 0, 8, 4)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Log(ctx, "u1", night(14, 6, 0, 1, 3)); !errors.Is(err, ErrOverlap) {
		t.Errorf("expected ErrOverlap, got %v", err)
	}
	if _, err := s.Log(ctx, "u2", night(14, 6, 0, 1, 3)); err != nil {
		t.Errorf("other users are independent: %v", err)
	}
}

func TestListAndDelete(t *testing.T) {
	s := newTestService(nil)
	ctx := context.Background()
	old, _ := s.Log(ctx, "u1", night(1, 23, 0, 7, 3))
	recent, _ := s.Log(ctx, "u1", night(13, 23, 0, 7, 3))

	items, err := s.List(ctx, "u1", 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].ID != recent.ID {
		t.Errorf("expected only the recent night, got %+v", items)
	}
	all, _ := s.List(ctx, "u1", 0)
	if len(all) != 2 {
		t.Errorf("expected all nights, got %d", len(all))
	}
	if err := s.Delete(ctx, "u1", old.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "u1", old.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestStats_Manual(t *testing.T) {
	fw := &fakeWearable{}
	s := newTestService(fw)
	ctx := context.Background()
	// Bedtimes 23:00, 00:00 (next day) and 23:30: an hour apart across midnight.
	for _, in := range []SessionInput{
		night(11, 23, 0, 8, 4),
		night(13, 0, 0, 7, 3),
		night(13, 23, 30, 7.5, 5),
	} {
		if _, err := s.Log(ctx, "u1", in); err != nil {
			t.Fatal(err)
		}
	}
	st, err := s.Stats(ctx, "u1", 7)
	if err != nil {
		t.Fatal(err)
	}
	if st.Source != SourceManual || st.Nights != 3 || fw.calls != 0 {
		t.Errorf("expected manual stats without wearable call, got %+v", st)
	}
	if st.AvgHours != 7.5 || st.AvgQuality != 4 {
		t.Errorf("unexpected averages %+v", st)
	}
	// Population stddev of {660, 720, 690} minutes.
	if st.Consistency != 24.5 {
		t.Errorf("expected consistency 24.5, got %v", st.Consistency)
	}
	if st.Score != 94 {
		t.Errorf("expected score 94, got %d", st.Score)
	}
}

func TestStats_FallsBackToWearable(t *testing.T) {
	end := time.Date(2024, 3, 15, 7, 0, 0, 0, time.UTC)
	fw := &fakeWearable{nights: []sandbox.SleepSession{
		{Start: end.Add(-6 * time.Hour), End: end, Quality: 2, Stages: []sandbox.SleepStage{{Stage: "deep", Minutes: 60}}},
	}}
	s := newTestService(fw)
	st, err := s.Stats(context.Background(), "u1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if st.Days != 7 || st.Source != string(integrations.SourceMock) || st.Nights != 1 {
		t.Errorf("unexpected stats %+v", st)
	}
	if st.StageMinutes["deep"] != 60 {
		t.Errorf("expected stage totals, got %v", st.StageMinutes)
	}
}

func TestStats_Empty(t *testing.T) {
	st, err := newTestService(nil).Stats(context.Background(), "u1", 7)
	if err != nil {
		t.Fatal(err)
	}
	if st.Nights != 0 || st.Score != 0 {
		t.Errorf("expected empty stats, got %+v", st)
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		hours, quality, consistency float64
		want                        int
	}{
		{8, 5, 0, 100},
		{8, 5, 120, 80},
		{5, 5, 0, 80},
		{10, 2.5, 75, 65},
		{0, 0, 500, 0},
	}
	for _, tt := range tests {
		if got := Score(tt.hours, tt.quality, tt.consistency); got != tt.want {
			t.Errorf("Score(%v, %v, %v) = %d, want %d", tt.hours, tt.quality, tt.consistency, got, tt.want)
		}
	}
}

func TestHandler_LogConflict(t *testing.T) {
	s := newTestService(nil)
	e := echo.New()
	e.Validator = validate.New()
	NewHandler(s).RegisterRoutes(e.Group("/api/v1/dashboard"))

	post := func(body string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/dashboard/sleep/sessions", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req = req.WithContext(auth.WithUser(req.Context(), "u1", []string{auth.RoleUser}))
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}
	body := `{"start":"2024-03-13T23:00:00Z","end":"2024-03-14T07:00:00Z","quality":4}`
	if code := post(body); code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}
	if code := post(body); code != http.StatusConflict {
		t.Errorf("expected 409, got %d", code)
	}
	if code := post(`{"start":"2024-03-12T23:00:00Z","end":"2024-03-13T07:00:00Z","quality":9}`); code != http.StatusBadRequest {
		t.Errorf("expected 400 for quality out of range, got %d", code)
	}
}

func TestImport_SkipsOverlaps(t *testing.T) {
	s := newTestService(nil)
	ctx := context.Background()
	if _, err := s.Log(ctx, "u1", night(13, 23, 0, 8, 4)); err != nil {
		t.Fatal(err)
	}
	seeded := []sandbox.SleepSession{
		{Start: time.Date(2024, 3, 12, 23, 0, 0, 0, time.UTC), End: time.Date(2024, 3, 13, 7, 0, 0, 0, time.UTC), Quality: 3},
		{Start: time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 3, 14, 6, 0, 0, 0, time.UTC), Quality: 2},
		{Start: time.Date(2024, 3, 14, 23, 0, 0, 0, time.UTC), End: time.Date(2024, 3, 14, 22, 0, 0, 0, time.UTC), Quality: 2},
	}
	n, err := s.Import(ctx, "u1", seeded)
	if err != nil || n != 1 {
		t.Fatalf("expected one imported night, got %d, %v", n, err)
	}
	items, _ := s.List(ctx, "u1", 0)
	if len(items) != 2 || items[1].Source != SourceWearable {
		t.Errorf("expected the imported night tagged wearable, got %+v", items)
	}
}
