package db

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestReadiness_AllHealthy(t *testing.T) {
	r := NewReadiness()
	r.Add("sqlite", func(context.Context) error { return nil })
	r.Add("redis", func(context.Context) error { return nil })
	r.Add("ignored", nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	if err := r.Handler()(e.NewContext(req, rec)); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "healthy" || len(body.Checks) != 2 || body.Checks["redis"] != "ok" {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestReadiness_FailingCheck(t *testing.T) {
	r := NewReadiness()
	r.Add("sqlite", func(context.Context) error { return nil })
	r.Add("mongo", func(context.Context) error { return errors.New("connection refused") })

	results, healthy := r.Run(context.Background())
	if healthy {
		t.Error("expected unhealthy")
	}
	if results["mongo"] != "connection refused" || results["sqlite"] != "ok" {
		t.Errorf("unexpected results: %v", results)
	}

	e := echo.New()
	rec := httptest.NewRecorder()
	_ = r.Handler()(e.NewContext(httptest.NewRequest(http.MethodGet, "/readyz", nil), rec))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestReadiness_ChecksGetDeadline(t *testing.T) {
	r := NewReadiness()
	r.Add("deadline", func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			return errors.New("no deadline")
		}
		return nil
	})
	if _, healthy := r.Run(context.Background()); !healthy {
		t.Error("expected checks to run under a deadline")
	}
}

func TestPoolStats_JSONTags(t *testing.T) {
	b, err := json.Marshal(&PoolStats{TotalConns: 3, Healthy: true})
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]interface{}
	_ = json.Unmarshal(b, &m)
	for _, k := range []string{"total_conns", "idle_conns", "acquired_conns", "max_conns", "acquire_count", "acquire_duration", "healthy"} {
		if _, ok := m[k]; !ok {
			t.Errorf("expected json key %q", k)
		}
	}
}
