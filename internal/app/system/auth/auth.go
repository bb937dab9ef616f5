// internal/app/system/auth/auth.go
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Session keys                                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

const (
	isAuthKey = "is_authenticated"
	userIDKey = "user_id"
	userName  = "user_name"
)

// SessionUser is the identity injected into r.Context() for signed-in
// callers, whether they came in with a cookie or a bearer token.
type SessionUser struct {
	ID   string
	Name string
}

// UserFetcher reloads a user on each request so deleted accounts lose
// access immediately. It returns nil when the user no longer exists.
type UserFetcher interface {
	FetchUser(ctx context.Context, userID string) *SessionUser
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the user placed in context by LoadSessionUser.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok && u != nil
}

// WithTestUser injects u into the request context. Used by handler tests.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

/*─────────────────────────────────────────────────────────────────────────────*
| SessionManager                                                               |
*─────────────────────────────────────────────────────────────────────────────*/

// SessionManager owns the cookie store, the token issuer and the optional
// user fetcher. One instance is built in BuildHandler and shared by every
// feature that needs identity.
type SessionManager struct {
	store   *sessions.CookieStore
	name    string
	tokens  *Tokens
	fetcher UserFetcher
	log     *zap.Logger
}

// NewSessionManager builds the cookie store. secure=true marks cookies
// Secure with SameSite=None (production over HTTPS); otherwise Lax.
func NewSessionManager(sessionKey, name, domain string, maxAge time.Duration, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, fmt.Errorf("session key is empty; provide ≥32 random chars")
	}
	if len(sessionKey) < 32 {
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(sessionKey)))
	}
	if name == "" {
		return nil, errors.New("session name is empty")
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	store.Options = &sessions.Options{
		Domain:   domain,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if secure {
		store.Options.SameSite = http.SameSiteNoneMode
	}

	logger.Info("session store initialized",
		zap.Bool("secure", secure),
		zap.String("domain", domain),
		zap.Duration("max_age", maxAge))

	return &SessionManager{store: store, name: name, log: logger}, nil
}

// Store exposes the underlying cookie store.
func (sm *SessionManager) Store() sessions.Store { return sm.store }

// SetTokens enables bearer-token authentication.
func (sm *SessionManager) SetTokens(t *Tokens) { sm.tokens = t }

// Tokens returns the token issuer, or nil when tokens are disabled.
func (sm *SessionManager) Tokens() *Tokens { return sm.tokens }

// SetUserFetcher makes LoadSessionUser re-validate identities per request.
func (sm *SessionManager) SetUserFetcher(f UserFetcher) { sm.fetcher = f }

// GetSession returns the named session. A cookie that fails to decode (for
// example after a key rotation) yields a fresh session and no error.
func (sm *SessionManager) GetSession(r *http.Request) (*sessions.Session, error) {
	sess, err := sm.store.Get(r, sm.name)
	if err != nil {
		var scErr securecookie.Error
		if errors.As(err, &scErr) && scErr.IsDecode() {
			sm.log.Debug("discarding undecodable session cookie", zap.Error(err))
			return sess, nil
		}
		return sess, err
	}
	return sess, nil
}

// SignIn records u in the session cookie.
func (sm *SessionManager) SignIn(w http.ResponseWriter, r *http.Request, u SessionUser) error {
	sess, err := sm.GetSession(r)
	if err != nil {
		return err
	}
	sess.Values[isAuthKey] = true
	sess.Values[userIDKey] = u.ID
	sess.Values[userName] = u.Name
	return sess.Save(r, w)
}

// SignOut expires the session cookie.
func (sm *SessionManager) SignOut(w http.ResponseWriter, r *http.Request) error {
	sess, err := sm.GetSession(r)
	if err != nil {
		return err
	}
	sess.Values = map[interface{}]interface{}{}
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

// Authenticate resolves the caller from, in order: an Authorization bearer
// token, a ?token= query parameter (browsers cannot set headers on
// websocket upgrades), and the session cookie.
func (sm *SessionManager) Authenticate(r *http.Request) (*SessionUser, bool) {
	u := sm.fromToken(r)
	if u == nil {
		u = sm.fromCookie(r)
	}
	if u == nil {
		return nil, false
	}
	if sm.fetcher != nil {
		fresh := sm.fetcher.FetchUser(r.Context(), u.ID)
		if fresh == nil {
			return nil, false
		}
		u = fresh
	}
	return u, true
}

func (sm *SessionManager) fromToken(r *http.Request) *SessionUser {
	if sm.tokens == nil {
		return nil
	}
	raw := bearerToken(r)
	if raw == "" {
		raw = r.URL.Query().Get("token")
	}
	if raw == "" {
		return nil
	}
	u, err := sm.tokens.Parse(raw)
	if err != nil {
		sm.log.Debug("rejected bearer token", zap.Error(err))
		return nil
	}
	return &u
}

func (sm *SessionManager) fromCookie(r *http.Request) *SessionUser {
	sess, err := sm.GetSession(r)
	if err != nil {
		return nil
	}
	if isAuth, _ := sess.Values[isAuthKey].(bool); !isAuth {
		return nil
	}
	id := getString(sess, userIDKey)
	if id == "" {
		return nil
	}
	return &SessionUser{ID: id, Name: getString(sess, userName)}
}

// LoadSessionUser injects the caller into the context when one can be
// resolved. Anonymous requests pass through untouched.
func (sm *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u, ok := sm.Authenticate(r); ok {
			r = withUser(r, u)
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSignedIn rejects requests without a user in context with a JSON
// 401.
func (sm *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); ok {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
	})
}

// helpers

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func getString(s *sessions.Session, key string) string {
	if v, ok := s.Values[key].(string); ok {
		return v
	}
	return ""
}
