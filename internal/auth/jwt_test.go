package auth

import (
	"testing"
	"time"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	token, err := NewSessionToken("secret", "issuer", time.Minute, Claims{
		TutorID: "tutor-1",
		Email:   "tutor@example.com",
		Name:    "New Tutor",
	})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	claims, err := ParseSessionToken("secret", token)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if claims.TutorID != "tutor-1" || claims.Email != "tutor@example.com" || claims.Name != "New Tutor" {
		t.Fatalf("unexpected claims")
	}
}

func TestSessionTokenWrongSecret(t *testing.T) {
	token, err := NewSessionToken("secret", "issuer", time.Minute, Claims{TutorID: "tutor-1"})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseSessionToken("other-secret", token); err == nil {
		t.Fatalf("expected parse to fail with wrong secret")
	}
}

func TestSessionTokenExpired(t *testing.T) {
	token, err := NewSessionToken("secret", "issuer", -time.Minute, Claims{TutorID: "tutor-1"})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseSessionToken("secret", token); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}
