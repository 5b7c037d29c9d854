package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestSecurityHeaders(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		hsts      bool
		wantHSTS  bool
		wantStore string
	}{
		{"api in production", "/api/v1/dashboard/profile", true, true, "no-store"},
		{"api in development", "/api/v1/dashboard/profile", false, false, "no-store"},
		{"metrics", "/metrics", true, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, tt.path, nil), rec)
			if err := SecurityHeaders(tt.hsts)(okHandler)(c); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for _, kv := range baseHeaders {
				if got := rec.Header().Get(kv[0]); got != kv[1] {
					t.Errorf("%s = %q, want %q", kv[0], got, kv[1])
				}
			}
			if got := rec.Header().Get("Strict-Transport-Security") != ""; got != tt.wantHSTS {
				t.Errorf("HSTS present = %v, want %v", got, tt.wantHSTS)
			}
			if got := rec.Header().Get("Cache-Control"); got != tt.wantStore {
				t.Errorf("Cache-Control = %q, want %q", got, tt.wantStore)
			}
		})
	}
}

func TestSecurityHeaders_PropagatesHandlerError(t *testing.T) {
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/medications/x", nil), httptest.NewRecorder())
	err := SecurityHeaders(true)(func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "medication not found")
	})(c)
	if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404 to propagate, got %v", err)
	}
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
