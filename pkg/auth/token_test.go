package auth

import (
	"testing"
	"time"

	"github.com/codeseek/codeseek-backend/pkg/config"
	"github.com/google/uuid"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "codeseek-test",
		ExpirationMinutes: 15,
	}
}

func TestMintAndVerifyRoundTrip(t *testing.T) {
	cfg := testJWTConfig()
	userID := uuid.New()

	token, err := MintAccessToken(cfg, time.Now(), userID, RoleAdmin)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	claims, err := VerifyAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != userID {
		t.Fatalf("expected user %s, got %s", userID, claims.UserID)
	}
	if claims.Role != RoleAdmin {
		t.Fatalf("expected admin role, got %q", claims.Role)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), uuid.New(), RoleAdmin)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	other := cfg
	other.Secret = "different-secret"
	if _, err := VerifyAccessToken(other, token); err == nil {
		t.Fatal("expected verification to fail with the wrong secret")
	}
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), uuid.New(), RoleAdmin)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	other := cfg
	other.Issuer = "someone-else"
	if _, err := VerifyAccessToken(other, token); err == nil {
		t.Fatal("expected verification to fail with the wrong issuer")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now().Add(-time.Hour), uuid.New(), RoleAdmin)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := VerifyAccessToken(cfg, token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestMintRequiresConfig(t *testing.T) {
	cfg := testJWTConfig()
	cfg.Secret = ""
	if _, err := MintAccessToken(cfg, time.Now(), uuid.New(), RoleAdmin); err == nil {
		t.Fatal("expected an error with no secret")
	}
}
