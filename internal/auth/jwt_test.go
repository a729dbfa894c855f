package auth

import (
	"testing"
	"time"
)

func TestJWT_RoundTrip(t *testing.T) {
	mgr := NewJWTManager("test-secret", time.Hour)

	token, expiresAt, err := mgr.Generate("admin@example.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if time.Until(expiresAt) < 55*time.Minute {
		t.Fatalf("expiry too soon: %v", expiresAt)
	}

	claims, err := mgr.Validate(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != "admin@example.com" {
		t.Fatalf("expected user id to round trip, got %q", claims.UserID)
	}
	if claims.Issuer != "armada" {
		t.Fatalf("expected issuer armada, got %q", claims.Issuer)
	}
}

func TestJWT_WrongSecret(t *testing.T) {
	token, _, err := NewJWTManager("secret-a", time.Hour).Generate("user")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := NewJWTManager("secret-b", time.Hour).Validate(token); err == nil {
		t.Fatal("expected validation to fail with the wrong secret")
	}
}

func TestJWT_Expired(t *testing.T) {
	mgr := NewJWTManager("test-secret", -time.Minute)
	token, _, err := mgr.Generate("user")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := mgr.Validate(token); err == nil {
		t.Fatal("expected validation to fail for expired token")
	}
}

func TestJWT_Garbage(t *testing.T) {
	mgr := NewJWTManager("test-secret", time.Hour)
	if _, err := mgr.Validate("not.a.token"); err == nil {
		t.Fatal("expected validation to fail for malformed token")
	}
}

func TestAgentToken(t *testing.T) {
	token, hash, err := GenerateAgentToken()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(token) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(token))
	}
	if !VerifyToken(token, hash) {
		t.Fatal("token must verify against its own hash")
	}
	if VerifyToken("deadbeef", hash) {
		t.Fatal("wrong token must not verify")
	}
	if HashToken(token) != hash {
		t.Fatal("hash must be deterministic")
	}
}
