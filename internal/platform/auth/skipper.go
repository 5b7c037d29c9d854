package auth

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// publicPaths lists route patterns that bypass authentication.
var publicPaths = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
	// The wearable's OAuth redirect carries a state parameter, not our token.
	"/api/v1/dashboard/fitness/callback": true,
}

const authPrefix = "/api/v1/auth/"

// AuthSkipper returns true for requests whose path should skip
// authentication: infrastructure probes and the login/register endpoints.
func AuthSkipper(c echo.Context) bool {
	p := c.Path()
	if p == "" {
		p = c.Request().URL.Path
	}
	return IsPublicPath(p)
}

// IsPublicPath reports whether path is reachable without credentials.
func IsPublicPath(path string) bool {
	return publicPaths[path] || strings.HasPrefix(path, authPrefix)
}
