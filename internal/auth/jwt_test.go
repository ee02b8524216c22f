package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

func TestGenerateToken(t *testing.T) {
	t.Parallel()
	signed, expiresAt, err := GenerateToken("admin", "secret", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if signed == "" {
		t.Fatal("token is empty")
	}
	if remaining := time.Until(expiresAt); remaining < 59*time.Minute || remaining > time.Hour {
		t.Fatalf("expires_at = %v, want about an hour out", expiresAt)
	}

	token, err := jwt.Parse(signed, func(*jwt.Token) (any, error) {
		return []byte("secret"), nil
	})
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		t.Fatal("claims are not MapClaims")
	}
	if claims["sub"] != "admin" {
		t.Fatalf("sub = %v, want admin", claims["sub"])
	}
}

func TestGenerateTokenRejectsWrongKey(t *testing.T) {
	t.Parallel()
	signed, _, err := GenerateToken("admin", "secret", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := jwt.Parse(signed, func(*jwt.Token) (any, error) {
		return []byte("other"), nil
	}); err == nil {
		t.Fatal("expected verification failure with wrong key")
	}
}

func contextWithToken(token *jwt.Token) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	if token != nil {
		c.Set("user", token)
	}
	return c
}

func TestOperatorFromContext(t *testing.T) {
	t.Parallel()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "admin"})
	token.Valid = true

	operator, err := OperatorFromContext(contextWithToken(token))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if operator != "admin" {
		t.Fatalf("operator = %q, want admin", operator)
	}
}

func TestOperatorFromContextMissingToken(t *testing.T) {
	t.Parallel()
	if _, err := OperatorFromContext(contextWithToken(nil)); err == nil {
		t.Fatal("expected error without token")
	}
}

func TestOperatorFromContextMissingSubject(t *testing.T) {
	t.Parallel()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"iat": 1})
	token.Valid = true

	if _, err := OperatorFromContext(contextWithToken(token)); err == nil {
		t.Fatal("expected error without sub claim")
	}
}

func TestGenerateTokenValidation(t *testing.T) {
	t.Parallel()
	if _, _, err := GenerateToken("", "secret", time.Hour); err == nil {
		t.Fatal("expected error for empty operator")
	}
	if _, _, err := GenerateToken("admin", "", time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, _, err := GenerateToken("admin", "secret", 0); err == nil {
		t.Fatal("expected error for non-positive expiry")
	}
}
