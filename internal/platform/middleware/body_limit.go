package middleware

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// Limits caps request body sizes in bytes. Upload applies to multipart
// requests (visit attachments and stored files), Default to the JSON API.
type Limits struct {
	Default int64
	Upload  int64
}

// ParseLimits builds Limits from sizes such as "1M", "512K" or "2048".
func ParseLimits(def, upload string) (Limits, error) {
	d, err := ParseSize(def)
	if err != nil {
		return Limits{}, fmt.Errorf("body limit: %w", err)
	}
	u, err := ParseSize(upload)
	if err != nil {
		return Limits{}, fmt.Errorf("upload limit: %w", err)
	}
	if u < d {
		return Limits{}, fmt.Errorf("upload limit %s is below the body limit %s", upload, def)
	}
	return Limits{Default: d, Upload: u}, nil
}

var sizeUnits = []struct {
	suffix string
	mult   int64
}{
	{"GB", 1 << 30}, {"G", 1 << 30},
	{"MB", 1 << 20}, {"M", 1 << 20},
	{"KB", 1 << 10}, {"K", 1 << 10},
	{"B", 1},
}

// ParseSize reads a byte count with an optional K, M or G suffix.
func ParseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	mult := int64(1)
	for _, u := range sizeUnits {
		if rest, ok := strings.CutSuffix(s, u.suffix); ok {
			s, mult = strings.TrimSpace(rest), u.mult
			break
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return n * mult, nil
}

// BodyLimit answers 413 when a body exceeds its limit, either by declared
// Content-Length or while the handler reads it.
func BodyLimit(l Limits) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}
			limit := l.Default
			if strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
				limit = l.Upload
			}
			if req.ContentLength > limit {
				return tooLarge(limit)
			}
			req.Body = &cappedBody{ReadCloser: req.Body, left: limit, limit: limit}
			return next(c)
		}
	}
}

// cappedBody reads at most one byte past the limit so overflow is detected
// even when Content-Length is missing or wrong.
type cappedBody struct {
	io.ReadCloser
	left  int64
	limit int64
}

func (b *cappedBody) Read(p []byte) (int, error) {
	if b.left < 0 {
		return 0, tooLarge(b.limit)
	}
	if int64(len(p)) > b.left+1 {
		p = p[:b.left+1]
	}
	n, err := b.ReadCloser.Read(p)
	b.left -= int64(n)
	if b.left < 0 {
		return 0, tooLarge(b.limit)
	}
	return n, err
}

func tooLarge(limit int64) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
		fmt.Sprintf("request body exceeds the %d byte limit", limit))
}
