package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func waitForCancel(c echo.Context) error {
	select {
	case <-time.After(5 * time.Second):
		return c.NoContent(http.StatusOK)
	case <-c.Request().Context().Done():
		return c.Request().Context().Err()
	}
}

func TestRequestTimeout(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		timeout  time.Duration
		handler  echo.HandlerFunc
		wantCode int
	}{
		{"fast dashboard", "/api/v1/dashboard", time.Second, okHandler, 0},
		{"slow insights", "/api/v1/dashboard/insights", 20 * time.Millisecond, waitForCancel, http.StatusGatewayTimeout},
		{"metrics scrape is exempt", "/metrics", 20 * time.Millisecond, func(c echo.Context) error {
			if _, ok := c.Request().Context().Deadline(); ok {
				t.Error("metrics must not carry a deadline")
			}
			return c.NoContent(http.StatusOK)
		}, 0},
		{"handler already answered", "/api/v1/dashboard/sleep/stats", 20 * time.Millisecond, func(c echo.Context) error {
			if err := c.String(http.StatusOK, "partial"); err != nil {
				return err
			}
			<-c.Request().Context().Done()
			return nil
		}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			c := echo.New().NewContext(req, httptest.NewRecorder())

			err := RequestTimeout(tt.timeout, PathSkipper("/metrics"))(tt.handler)(c)
			if tt.wantCode == 0 {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			var he *echo.HTTPError
			if !errors.As(err, &he) || he.Code != tt.wantCode {
				t.Errorf("expected HTTP %d, got %v", tt.wantCode, err)
			}
		})
	}
}

func TestRequestTimeout_NilSkipper(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	c := echo.New().NewContext(req, httptest.NewRecorder())
	called := false
	err := RequestTimeout(time.Second, nil)(func(c echo.Context) error {
		called = true
		if _, ok := c.Request().Context().Deadline(); !ok {
			t.Error("expected a deadline")
		}
		return nil
	})(c)
	if err != nil || !called {
		t.Errorf("expected handler to run cleanly, err=%v called=%v", err, called)
	}
}

func TestPathSkipper(t *testing.T) {
	skip := PathSkipper("/metrics", "/mcp")
	for path, want := range map[string]bool{
		"/metrics":          true,
		"/mcp/session":      true,
		"/api/v1/dashboard": false,
	} {
		c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, path, nil), httptest.NewRecorder())
		if got := skip(c); got != want {
			t.Errorf("PathSkipper(%q) = %v, want %v", path, got, want)
		}
	}
}
