package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndVerifyToken(t *testing.T) {
	m := NewManager("test-secret", time.Hour)

	raw, err := m.GenerateToken("user-123")
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	claims, err := m.VerifyToken(raw)
	if err != nil {
		t.Fatalf("VerifyToken error: %v", err)
	}

	if claims.UserID != "user-123" {
		t.Fatalf("got user id %q, want %q", claims.UserID, "user-123")
	}
	if claims.JTI == "" {
		t.Fatalf("expected jti to be set")
	}
}

func TestVerifyToken_WrongSecret(t *testing.T) {
	issuer := NewManager("secret-a", time.Hour)
	verifier := NewManager("secret-b", time.Hour)

	raw, err := issuer.GenerateToken("user-123")
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	if _, err := verifier.VerifyToken(raw); err == nil {
		t.Fatalf("expected signature mismatch error")
	}
}

func TestVerifyToken_Expired(t *testing.T) {
	m := NewManager("test-secret", time.Minute)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	raw, err := m.GenerateToken("user-123")
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	m.now = time.Now
	if _, err := m.VerifyToken(raw); err == nil {
		t.Fatalf("expected expiry error")
	}
}

func TestVerifyToken_WrongType(t *testing.T) {
	m := NewManager("test-secret", time.Hour)

	claims := Claims{
		UserID:    "user-123",
		TokenType: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign error: %v", err)
	}

	if _, err := m.VerifyToken(raw); err != ErrInvalidTokenType {
		t.Fatalf("got %v, want ErrInvalidTokenType", err)
	}
}

func TestVerifyToken_Garbage(t *testing.T) {
	m := NewManager("test-secret", time.Hour)

	if _, err := m.VerifyToken("not-a-jwt"); err == nil {
		t.Fatalf("expected parse error")
	}
}
