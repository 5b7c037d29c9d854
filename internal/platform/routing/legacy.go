// Package routing holds the URL layout shared by the server and its
// legacy aliases.
package routing

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	APIPrefix       = "/api/v1"
	DashboardPrefix = APIPrefix + "/dashboard"
	AdminPrefix     = APIPrefix + "/admin"
	AuthPrefix      = APIPrefix + "/auth"
)

// LegacySections are the feature areas that used to live directly under
// /api/v1 before moving beneath /api/v1/dashboard.
var LegacySections = []string{
	"nutrition", "fitness", "sleep", "symptoms", "medications", "telemedicine", "insights",
	"notifications", "profile", "emergency", "wellbeing", "pharmacist", "assistant", "anomalies",
}

var legacy = func() map[string]bool {
	m := make(map[string]bool, len(LegacySections))
	for _, s := range LegacySections {
		m[s] = true
	}
	return m
}()

// Rewrite maps a flat legacy path to its dashboard path. The second result
// is false when path is not a legacy alias.
func Rewrite(path string) (string, bool) {
	rest, ok := strings.CutPrefix(path, APIPrefix+"/")
	if !ok {
		return "", false
	}
	section, _, _ := strings.Cut(rest, "/")
	if !legacy[section] {
		return "", false
	}
	return DashboardPrefix + "/" + rest, true
}

// LegacyRedirect answers legacy aliases with a 308 so clients repeat the
// method and body against the new location. Register it with Echo.Pre.
func LegacyRedirect() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			target, ok := Rewrite(req.URL.Path)
			if !ok {
				return next(c)
			}
			if req.URL.RawQuery != "" {
				target += "?" + req.URL.RawQuery
			}
			return c.Redirect(http.StatusPermanentRedirect, target)
		}
	}
}
