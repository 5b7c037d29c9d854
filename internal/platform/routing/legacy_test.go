package routing

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestRewrite(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"/api/v1/sleep", "/api/v1/dashboard/sleep", true},
		{"/api/v1/medications/abc/doses", "/api/v1/dashboard/medications/abc/doses", true},
		{"/api/v1/profile/", "/api/v1/dashboard/profile/", true},
		{"/api/v1/dashboard/sleep", "", false},
		{"/api/v1/admin/users", "", false},
		{"/api/v1/auth/login", "", false},
		{"/api/v1/sleeping", "", false},
		{"/healthz", "", false},
	}
	for _, tt := range tests {
		got, ok := Rewrite(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Rewrite(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestLegacyRedirect(t *testing.T) {
	e := echo.New()
	e.Pre(LegacyRedirect())
	e.GET("/api/v1/dashboard/sleep/stats", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sleep/stats?days=14", nil))
	if rec.Code != http.StatusPermanentRedirect {
		t.Fatalf("expected 308, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/api/v1/dashboard/sleep/stats?days=14" {
		t.Errorf("unexpected Location %q", loc)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/sleep/stats", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("new paths must pass through, got %d", rec.Code)
	}
}
