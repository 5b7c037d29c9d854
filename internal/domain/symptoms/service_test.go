package symptoms

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/healthhub/healthhub/internal/domain/healthgraph"
	"github.com/healthhub/healthhub/internal/platform/auth"
	"github.com/healthhub/healthhub/internal/platform/kvstore"
	"github.com/healthhub/healthhub/internal/platform/telemetry"
	"github.com/healthhub/healthhub/internal/platform/validate"
)

func newTestService() *Service {
	return NewService(healthgraph.NewSeeded(), kvstore.NewMemoryStore(), zerolog.Nop())
}

func TestUrgencyFor(t *testing.T) {
	tests := []struct {
		level float64
		want  Urgency
	}{
		{0, UrgencyLow},
		{0.69, UrgencyLow},
		{0.7, UrgencyModerate},
		{1.49, UrgencyModerate},
		{1.5, UrgencyHigh},
		{2.8, UrgencyHigh},
	}
	for _, tt := range tests {
		if got := UrgencyFor(tt.level); got != tt.want {
			t.Errorf("UrgencyFor(%v) = %s, want %s", tt.level, got, tt.want)
		}
	}
}

func TestCheck_MergesConditions(t *testing.T) {
	s := newTestService()
	m := telemetry.NewCollector(telemetry.Config{})
	s.SetMetrics(m)

	res, err := s.Check(context.Background(), "u1", []string{"Chest Pain", "shortness of breath", "chest pain", "nosebleed"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Symptoms) != 2 {
		t.Errorf("expected 2 recognised symptoms, got %v", res.Symptoms)
	}
	if len(res.Unknown) != 1 || res.Unknown[0] != "nosebleed" {
		t.Errorf("expected nosebleed unknown, got %v", res.Unknown)
	}
	if len(res.Conditions) != 2 {
		t.Fatalf("expected heart disease and asthma, got %+v", res.Conditions)
	}
	hd := res.Conditions[0]
	if hd.Name != "heart disease" || hd.Score != 0.9 || len(hd.Symptoms) != 2 {
		t.Errorf("expected heart disease first with score 0.9 from both symptoms, got %+v", hd)
	}
	if res.Conditions[1].Name != "asthma" || res.Conditions[1].Score != 0.8 {
		t.Errorf("unexpected second condition %+v", res.Conditions[1])
	}
	if !approx(res.MaxRiskLevel, 1.7) || res.Urgency != UrgencyHigh {
		t.Errorf("expected high urgency from 1.7, got %v %s", res.MaxRiskLevel, res.Urgency)
	}
	var detour bool
	for _, p := range res.RiskPaths["chest pain"] {
		if p.RiskNode == "respiratory failure" && approx(p.RiskLevel, 3.0) {
			detour = true
		}
	}
	if !detour {
		t.Errorf("expected the 3.0 path through shortness of breath to be listed, got %+v", res.RiskPaths["chest pain"])
	}
	if got := testutil.ToFloat64(m.SymptomChecks); got != 1 {
		t.Errorf("expected 1 symptom check recorded, got %v", got)
	}
}

func approx(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}

func TestCheck_UrgencyBands(t *testing.T) {
	b := healthgraph.NewBuilder()
	b.AddNode(healthgraph.TypeSymptom, "itch").
		AddNode(healthgraph.TypeSymptom, "cough").
		AddNode(healthgraph.TypeCondition, "rash").
		AddNode(healthgraph.TypeRisk, "infection")
	_ = b.AddEdge("itch", "rash", 0.3)
	_ = b.AddEdge("rash", "infection", 0.2)
	_ = b.AddEdge("cough", "infection", 0.8)
	s := NewService(b.Build(), kvstore.NewMemoryStore(), zerolog.Nop())

	low, err := s.Check(context.Background(), "u1", []string{"itch"})
	if err != nil {
		t.Fatal(err)
	}
	if low.Urgency != UrgencyLow {
		t.Errorf("expected low, got %s (%v)", low.Urgency, low.MaxRiskLevel)
	}
	mod, err := s.Check(context.Background(), "u1", []string{"cough"})
	if err != nil {
		t.Fatal(err)
	}
	if mod.Urgency != UrgencyModerate {
		t.Errorf("expected moderate, got %s", mod.Urgency)
	}
}

func TestCheck_Errors(t *testing.T) {
	s := newTestService()
	if _, err := s.Check(context.Background(), "u1", nil); err == nil {
		t.Error("expected error for no symptoms")
	}
	if _, err := s.Check(context.Background(), "u1", []string{"nosebleed", "heart disease"}); !errors.Is(err, ErrNoKnownSymptoms) {
		t.Errorf("expected ErrNoKnownSymptoms, got %v", err)
	}
}

func TestHistory_NewestFirst(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	for _, sym := range []string{"headache", "fatigue"} {
		if _, err := s.Check(ctx, "u1", []string{sym}); err != nil {
			t.Fatal(err)
		}
	}
	items, err := s.History(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || items[0].Symptoms[0] != "fatigue" {
		t.Errorf("expected fatigue first, got %+v", items)
	}
	if other, _ := s.History(ctx, "u2"); len(other) != 0 {
		t.Errorf("history must be per user, got %d", len(other))
	}
	if err := s.ClearHistory(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if items, _ := s.History(ctx, "u1"); len(items) != 0 {
		t.Errorf("expected empty history after clear, got %d", len(items))
	}
}

func TestHandler_Check(t *testing.T) {
	e := echo.New()
	e.Validator = validate.New()
	h := NewHandler(newTestService())
	h.RegisterRoutes(e.Group("/api/v1/dashboard"))

	do := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/dashboard/symptoms/check", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req = req.WithContext(auth.WithUser(req.Context(), "u1", []string{auth.RoleUser}))
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	rec := do(`{"symptoms":["dizziness"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res CheckResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Conditions) != 2 {
		t.Errorf("expected hypertension and anemia, got %+v", res.Conditions)
	}

	if rec := do(`{"symptoms":["nosebleed"]}`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown symptoms, got %d", rec.Code)
	}
	if rec := do(`{"symptoms":[]}`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty list, got %d", rec.Code)
	}
}

func TestHandler_Known(t *testing.T) {
	e := echo.New()
	h := NewHandler(newTestService())
	rec := httptest.NewRecorder()
	if err := h.HandleKnown(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)); err != nil {
		t.Fatal(err)
	}
	var body struct {
		Symptoms []string `json:"symptoms"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Symptoms) != 5 {
		t.Errorf("expected 5 seeded symptoms, got %v", body.Symptoms)
	}
}
