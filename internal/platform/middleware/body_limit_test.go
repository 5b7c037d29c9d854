package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"1M", 1 << 20, false},
		{"10mb", 10 << 20, false},
		{"512K", 512 << 10, false},
		{"1G", 1 << 30, false},
		{"2048", 2048, false},
		{"64B", 64, false},
		{"", 0, true},
		{"lots", 0, true},
		{"-1K", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseSize(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSize(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSize(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseLimits(t *testing.T) {
	l, err := ParseLimits("1M", "10M")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Default != 1<<20 || l.Upload != 10<<20 {
		t.Errorf("unexpected limits: %+v", l)
	}
	if _, err := ParseLimits("10M", "1M"); err == nil {
		t.Error("expected an error when uploads are capped below JSON bodies")
	}
	if _, err := ParseLimits("1M", "x"); err == nil {
		t.Error("expected an error for a bad upload size")
	}
}

func TestBodyLimit(t *testing.T) {
	limits := Limits{Default: 1 << 10, Upload: 4 << 10}
	tests := []struct {
		name      string
		method    string
		path      string
		mime      string
		size      int
		unknown   bool
		wantCode  int
		wantCalls bool
	}{
		{"small meal", http.MethodPost, "/api/v1/dashboard/nutrition/meals", echo.MIMEApplicationJSON, 64, false, 0, true},
		{"oversized meal", http.MethodPost, "/api/v1/dashboard/nutrition/meals", echo.MIMEApplicationJSON, 2048, false, http.StatusRequestEntityTooLarge, false},
		{"attachment within upload limit", http.MethodPost, "/api/v1/dashboard/telemedicine/appointments/1/attachments", echo.MIMEMultipartForm + "; boundary=x", 2048, false, 0, true},
		{"attachment over upload limit", http.MethodPost, "/api/v1/dashboard/files", echo.MIMEMultipartForm + "; boundary=x", 8192, false, http.StatusRequestEntityTooLarge, false},
		{"no body", http.MethodGet, "/api/v1/dashboard/sleep/stats", "", 0, false, 0, true},
		{"unknown length overflows on read", http.MethodPost, "/api/v1/dashboard/sleep/sessions", echo.MIMEApplicationJSON, 2048, true, http.StatusRequestEntityTooLarge, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.size > 0 {
				body = bytes.NewReader(bytes.Repeat([]byte("a"), tt.size))
			}
			req := httptest.NewRequest(tt.method, tt.path, body)
			if tt.mime != "" {
				req.Header.Set(echo.HeaderContentType, tt.mime)
			}
			if tt.unknown {
				req.ContentLength = -1
			}
			c := echo.New().NewContext(req, httptest.NewRecorder())

			called := false
			err := BodyLimit(limits)(func(c echo.Context) error {
				called = true
				_, err := io.ReadAll(c.Request().Body)
				return err
			})(c)

			if called != tt.wantCalls {
				t.Errorf("handler called = %v, want %v", called, tt.wantCalls)
			}
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
