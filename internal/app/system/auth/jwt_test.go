package auth

import (
	"errors"
	"testing"
	"time"
)

func TestTokens_RoundTrip(t *testing.T) {
	tok := NewTokens("0123456789abcdef0123456789abcdef", time.Hour)

	raw, err := tok.Issue(SessionUser{ID: "64b000000000000000000001", Name: "ada"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	u, err := tok.Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if u.ID != "64b000000000000000000001" || u.Name != "ada" {
		t.Errorf("unexpected user: %+v", u)
	}
}

func TestTokens_Expired(t *testing.T) {
	tok := NewTokens("0123456789abcdef0123456789abcdef", time.Minute)
	issued := time.Now()
	tok.now = func() time.Time { return issued }

	raw, err := tok.Issue(SessionUser{ID: "u1"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	tok.now = func() time.Time { return issued.Add(2 * time.Minute) }
	if _, err := tok.Parse(raw); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestTokens_WrongSecret(t *testing.T) {
	raw, err := NewTokens("secret-one-secret-one-secret-one", time.Hour).Issue(SessionUser{ID: "u1"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := NewTokens("secret-two-secret-two-secret-two", time.Hour).Parse(raw); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokens_Disabled(t *testing.T) {
	var tok *Tokens
	if _, err := tok.Issue(SessionUser{ID: "u1"}); !errors.Is(err, ErrTokensDisabled) {
		t.Errorf("Issue: expected ErrTokensDisabled, got %v", err)
	}
	if _, err := NewTokens("", 0).Parse("x"); !errors.Is(err, ErrTokensDisabled) {
		t.Errorf("Parse: expected ErrTokensDisabled, got %v", err)
	}
}

func TestTokens_RequiresSubject(t *testing.T) {
	if _, err := NewTokens("0123456789abcdef0123456789abcdef", 0).Issue(SessionUser{}); err == nil {
		t.Error("expected an error for an empty user id")
	}
}
