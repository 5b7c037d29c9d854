package telemetry

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewCollector_DefaultNamespace(t *testing.T) {
	c := NewCollector(Config{})
	c.RiskPathQuery()

	families, err := c.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "healthhub_risk_path_queries_total" {
			found = true
		}
	}
	if !found {
		t.Error("expected healthhub_risk_path_queries_total to be registered")
	}
}

func TestCollectors_AreIndependent(t *testing.T) {
	a := NewCollector(Config{})
	b := NewCollector(Config{})
	a.SymptomCheck()
	a.SymptomCheck()
	b.SymptomCheck()

	if got := testutil.ToFloat64(a.SymptomChecks); got != 2 {
		t.Errorf("expected 2 checks on a, got %v", got)
	}
	if got := testutil.ToFloat64(b.SymptomChecks); got != 1 {
		t.Errorf("expected 1 check on b, got %v", got)
	}
}

func TestNilCollector_IsSafe(t *testing.T) {
	var c *Collector
	c.IntegrationCall("nutrition", OutcomeLive)
	c.AddAnomalies(3)
	c.RiskPathQuery()
	c.SymptomCheck()
}

func TestIntegrationCall_Labels(t *testing.T) {
	c := NewCollector(Config{})
	c.IntegrationCall("nutrition", OutcomeFallback)
	c.IntegrationCall("nutrition", OutcomeFallback)
	c.IntegrationCall("chat", OutcomeLive)

	if got := testutil.ToFloat64(c.IntegrationCalls.WithLabelValues("nutrition", OutcomeFallback)); got != 2 {
		t.Errorf("expected 2 nutrition fallbacks, got %v", got)
	}
	if got := testutil.ToFloat64(c.IntegrationCalls.WithLabelValues("chat", OutcomeLive)); got != 1 {
		t.Errorf("expected 1 chat live call, got %v", got)
	}
}

func TestAddAnomalies_IgnoresNonPositive(t *testing.T) {
	c := NewCollector(Config{})
	c.AddAnomalies(0)
	c.AddAnomalies(-2)
	c.AddAnomalies(3)
	if got := testutil.ToFloat64(c.AnomaliesDetected); got != 3 {
		t.Errorf("expected 3, got %v", got)
	}
}

func TestMiddleware_RecordsRoutePattern(t *testing.T) {
	c := NewCollector(Config{})
	e := echo.New()
	e.Use(c.Middleware())
	e.GET("/items/:id", func(ec echo.Context) error {
		return ec.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/items/42", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if got := testutil.ToFloat64(c.HTTPRequests.WithLabelValues("GET", "/items/:id", "200")); got != 1 {
		t.Errorf("expected 1 request for route pattern, got %v", got)
	}
}

func TestMiddleware_RecordsHTTPErrorStatus(t *testing.T) {
	c := NewCollector(Config{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	ec := e.NewContext(req, rec)
	ec.SetPath("/fail")

	h := c.Middleware()(func(echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "missing")
	})
	if err := h(ec); err == nil {
		t.Fatal("expected error to pass through")
	}
	if got := testutil.ToFloat64(c.HTTPRequests.WithLabelValues("GET", "/fail", "404")); got != 1 {
		t.Errorf("expected 404 to be recorded, got %v", got)
	}

	h = c.Middleware()(func(echo.Context) error { return errors.New("boom") })
	_ = h(ec)
	if got := testutil.ToFloat64(c.HTTPRequests.WithLabelValues("GET", "/fail", "500")); got != 1 {
		t.Errorf("expected plain error to be recorded as 500, got %v", got)
	}
}

func TestHandler_ServesExposition(t *testing.T) {
	c := NewCollector(Config{Namespace: "test"})
	c.RiskPathQuery()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	ec := e.NewContext(req, rec)
	if err := c.Handler()(ec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "test_risk_path_queries_total 1") {
		t.Errorf("expected counter in exposition, got:\n%s", rec.Body.String())
	}
}
