package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestNewTokenIssuer_ShortKey(t *testing.T) {
	if _, err := NewTokenIssuer([]byte("short"), "", time.Hour); err == nil {
		t.Error("expected error for short key")
	}
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer(testSigningKey, "healthhub", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	fixed := time.Now()
	issuer.now = func() time.Time { return fixed }

	tok, err := issuer.Issue("user-1", "ada@example.com", "Ada", []string{RoleUser})
	if err != nil {
		t.Fatal(err)
	}
	if tok.TokenType != "Bearer" || !tok.ExpiresAt.Equal(fixed.Add(time.Hour)) {
		t.Errorf("unexpected token metadata: %+v", tok)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	c := e.NewContext(req, httptest.NewRecorder())

	handler := func(c echo.Context) error {
		if uid := UserIDFromContext(c.Request().Context()); uid != "user-1" {
			t.Errorf("expected user-1, got %q", uid)
		}
		return nil
	}
	if err := JWTMiddleware(issuer.Config())(handler)(c); err != nil {
		t.Fatalf("issued token rejected: %v", err)
	}
}

func TestTokenIssuer_WrongIssuerRejected(t *testing.T) {
	issuer, _ := NewTokenIssuer(testSigningKey, "someone-else", time.Hour)
	tok, err := issuer.Issue("user-1", "", "", nil)
	if err != nil {
		t.Fatal(err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	c := e.NewContext(req, httptest.NewRecorder())

	err = JWTMiddleware(JWTConfig{Issuer: "healthhub", SigningKey: testSigningKey})(okHandler)(c)
	expectStatus(t, err, http.StatusUnauthorized)
}
