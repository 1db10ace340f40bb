package auth

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := NewToken("secret", time.Minute, Claims{
		PrincipalId:    7,
		EmployeeNumber: "P-0007",
		Role:           "patrol",
		Name:           "Unit Seven",
	})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	claims, err := ParseToken("secret", token)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if claims.PrincipalId != 7 || claims.EmployeeNumber != "P-0007" ||
		claims.Role != "patrol" || claims.Name != "Unit Seven" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseIsIdempotent(t *testing.T) {
	token, err := NewToken("secret", time.Minute, Claims{PrincipalId: 3, Role: "supervisor"})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	a, err := ParseToken("secret", token)
	if err != nil {
		t.Fatalf("first parse: %v", err)
	}
	b, err := ParseToken("secret", token)
	if err != nil {
		t.Fatalf("second parse: %v", err)
	}
	if a.PrincipalId != b.PrincipalId || a.Role != b.Role || !a.ExpiresAt.Time.Equal(b.ExpiresAt.Time) {
		t.Fatalf("parses disagree: %+v vs %+v", a, b)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	token, err := NewToken("secret", -time.Minute, Claims{PrincipalId: 1})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseToken("secret", token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestWrongSecretRejected(t *testing.T) {
	token, err := NewToken("secret", time.Minute, Claims{PrincipalId: 1})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseToken("other", token); err == nil {
		t.Fatal("expected bad signature to be rejected")
	}
}
