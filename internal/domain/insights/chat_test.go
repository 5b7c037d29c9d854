package insights

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/healthhub/healthhub/internal/platform/auth"
	"github.com/healthhub/healthhub/internal/platform/integrations"
	"github.com/healthhub/healthhub/internal/platform/integrations/chat"
	"github.com/healthhub/healthhub/internal/platform/kvstore"
	"github.com/healthhub/healthhub/internal/platform/middleware"
	"github.com/healthhub/healthhub/internal/platform/telemetry"
	"github.com/healthhub/healthhub/internal/platform/validate"
)

type fakeCompleter struct {
	configured bool
	reply      string
	err        error
	calls      [][]chat.Message
}

func (f *fakeCompleter) Configured() bool { return f.configured }

func (f *fakeCompleter) Complete(_ context.Context, msgs []chat.Message) (string, error) {
	f.calls = append(f.calls, msgs)
	return f.reply, f.err
}

func newChat(client Completer, limit int) *ChatService {
	return NewChatService(client, middleware.NewSlidingWindow(limit, time.Minute), kvstore.NewMemoryStore(), zerolog.Nop())
}

func TestAsk_LiveIncludesHistory(t *testing.T) {
	fc := &fakeCompleter{configured: true, reply: "Stay hydrated."}
	s := newChat(fc, 10)
	ctx := context.Background()

	if _, err := s.Ask(ctx, "u1", "first question"); err != nil {
		t.Fatal(err)
	}
	ans, err := s.Ask(ctx, "u1", "second question")
	if err != nil {
		t.Fatal(err)
	}
	if ans.Source != integrations.SourceLive || ans.Reply != "Stay hydrated." {
		t.Errorf("unexpected answer %+v", ans)
	}
	if ans.Remaining != 8 {
		t.Errorf("expected 8 remaining, got %d", ans.Remaining)
	}
	second := fc.calls[1]
	if len(second) != 3 || second[0].Content != "first question" || second[1].Role != chat.RoleAssistant {
		t.Errorf("expected prior turn as context, got %+v", second)
	}
}

func TestAsk_FallsBackToCanned(t *testing.T) {
	m := telemetry.NewCollector(telemetry.Config{})
	for name, fc := range map[string]*fakeCompleter{
		"unconfigured": {configured: false},
		"failing":      {configured: true, err: errors.New("boom")},
	} {
		t.Run(name, func(t *testing.T) {
			s := newChat(fc, 10)
			s.SetMetrics(m)
			ans, err := s.Ask(context.Background(), "u1", "How can I sleep better?")
			if err != nil {
				t.Fatal(err)
			}
			if ans.Source != integrations.SourceMock || !strings.Contains(ans.Reply, "7 to 9 hours") {
				t.Errorf("expected canned sleep answer, got %+v", ans)
			}
		})
	}
	if got := testutil.ToFloat64(m.IntegrationCalls.WithLabelValues("chat", telemetry.OutcomeFallback)); got != 2 {
		t.Errorf("expected 2 fallbacks recorded, got %v", got)
	}
}

func TestAsk_RateLimited(t *testing.T) {
	s := newChat(nil, 2)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := s.Ask(ctx, "u1", "water?"); err != nil {
			t.Fatal(err)
		}
	}
	_, err := s.Ask(ctx, "u1", "water?")
	rl, ok := IsRateLimited(err)
	if !ok {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if rl.RetryAfter <= 0 || rl.RetryAfter > time.Minute {
		t.Errorf("unexpected retry after %v", rl.RetryAfter)
	}
	if _, err := s.Ask(ctx, "u2", "water?"); err != nil {
		t.Errorf("other users keep their own window: %v", err)
	}
}

func TestAsk_Validation(t *testing.T) {
	s := newChat(nil, 10)
	if _, err := s.Ask(context.Background(), "u1", "  "); err == nil {
		t.Error("expected error for empty question")
	}
	if _, err := s.Ask(context.Background(), "u1", strings.Repeat("a", 2001)); err == nil {
		t.Error("expected error for long question")
	}
}

func TestCannedAnswer_EmergencyFirst(t *testing.T) {
	got := CannedAnswer("I have chest pain and can't sleep")
	if !strings.Contains(got, "emergency") {
		t.Errorf("expected emergency advice, got %q", got)
	}
	if got := CannedAnswer("tell me a joke"); !strings.Contains(got, "clinician") {
		t.Errorf("expected default answer, got %q", got)
	}
}

type staticSnapshots struct{ snap Snapshot }

func (s staticSnapshots) Snapshot(context.Context, string) (Snapshot, error) { return s.snap, nil }

func TestHandler_ChatAndHistory(t *testing.T) {
	e := echo.New()
	e.Validator = validate.New()
	h := NewHandler(staticSnapshots{}, newChat(nil, 1))
	h.RegisterRoutes(e.Group("/api/v1/dashboard"))

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/dashboard/assistant/chat", strings.NewReader(`{"question":"any workout tips?"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req = req.WithContext(auth.WithUser(req.Context(), "u1", []string{auth.RoleUser}))
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}
	if rec := post(); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec := post()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/assistant/history", nil)
	req = req.WithContext(auth.WithUser(req.Context(), "u1", []string{auth.RoleUser}))
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var turns []ChatTurn
	if err := json.Unmarshal(rec.Body.Bytes(), &turns); err != nil {
		t.Fatal(err)
	}
	if len(turns) != 1 {
		t.Errorf("expected 1 stored turn, got %d", len(turns))
	}
}

func TestHandler_Insights(t *testing.T) {
	e := echo.New()
	h := NewHandler(staticSnapshots{Snapshot{AvgSteps: 2000}}, newChat(nil, 1))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.WithUser(req.Context(), "u1", []string{auth.RoleUser}))
	rec := httptest.NewRecorder()
	if err := h.HandleInsights(e.NewContext(req, rec)); err != nil {
		t.Fatal(err)
	}
	var body struct {
		Insights []Insight `json:"insights"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Insights) != 1 || body.Insights[0].Category != CategoryActivity {
		t.Errorf("unexpected insights %+v", body.Insights)
	}
}

func TestHandler_RequiresUser(t *testing.T) {
	e := echo.New()
	h := NewHandler(staticSnapshots{}, newChat(nil, 1))
	rec := httptest.NewRecorder()
	err := h.HandleInsights(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}
