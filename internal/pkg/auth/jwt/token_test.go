package jwt

import (
	"testing"
	"time"
)

const testSecret = "test-secret-key"

func TestGenerateAndParseRoundTrip(t *testing.T) {
	token, err := GenerateToken(&Payload{UserID: "alice", DisplayName: "Alice"}, testSecret, IdentityExpiration)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	parsed, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("failed to parse token: %v", err)
	}

	if parsed.UserID != "alice" || parsed.DisplayName != "Alice" {
		t.Errorf("unexpected identity claims: %+v", parsed)
	}
	if parsed.Issuer != TokenIssuer {
		t.Errorf("expected issuer %q, got %q", TokenIssuer, parsed.Issuer)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken(&Payload{UserID: "alice"}, testSecret, IdentityExpiration)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	if _, err := ParseToken(token, "a-different-secret"); err == nil {
		t.Error("a token signed with another secret must be rejected")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	token, err := GenerateToken(&Payload{UserID: "alice"}, testSecret, -time.Hour)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	if _, err := ParseToken(token, testSecret); err == nil {
		t.Error("an expired token must be rejected")
	}
}
