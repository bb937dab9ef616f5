// internal/app/system/auth/jwt.go
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokensDisabled = errors.New("token signing is not configured")
	ErrInvalidToken   = errors.New("invalid token")
)

// Tokens issues and verifies HS256 bearer tokens whose subject is the user
// id.
type Tokens struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewTokens builds a token issuer. expiry <= 0 issues tokens without exp.
func NewTokens(secret string, expiry time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), expiry: expiry, now: time.Now}
}

type claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Issue signs a token for u.
func (t *Tokens) Issue(u SessionUser) (string, error) {
	if t == nil || len(t.secret) == 0 {
		return "", ErrTokensDisabled
	}
	if strings.TrimSpace(u.ID) == "" {
		return "", errors.New("user id required")
	}

	now := t.now()
	c := claims{
		Name: u.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  u.ID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if t.expiry > 0 {
		c.ExpiresAt = jwt.NewNumericDate(now.Add(t.expiry))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(t.secret)
}

// Parse verifies raw and returns the identity it carries.
func (t *Tokens) Parse(raw string) (SessionUser, error) {
	if t == nil || len(t.secret) == 0 {
		return SessionUser{}, ErrTokensDisabled
	}

	parsed, err := jwt.ParseWithClaims(raw, &claims{}, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		return SessionUser{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid || strings.TrimSpace(c.Subject) == "" {
		return SessionUser{}, ErrInvalidToken
	}
	return SessionUser{ID: c.Subject, Name: c.Name}, nil
}
