package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/coderoom/internal/app/system/auth"
	"go.uber.org/zap"
)

func newTestSessionManager(t *testing.T) *auth.SessionManager {
	t.Helper()
	sm, err := auth.NewSessionManager(
		"test-session-key-must-be-32-chars-long",
		"test-session",
		"",
		24*time.Hour,
		false,
		zap.NewNop(),
	)
	if err != nil {
		t.Fatalf("failed to create session manager: %v", err)
	}
	sm.SetTokens(auth.NewTokens("test-jwt-secret-test-jwt-secret!", time.Hour))
	return sm
}

type fetcherFunc func(ctx context.Context, id string) *auth.SessionUser

func (f fetcherFunc) FetchUser(ctx context.Context, id string) *auth.SessionUser { return f(ctx, id) }

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := auth.CurrentUser(r)
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = w.Write([]byte(u.ID))
	})
}

func TestNewSessionManager_EmptyKey(t *testing.T) {
	if _, err := auth.NewSessionManager("", "s", "", time.Hour, false, zap.NewNop()); err == nil {
		t.Error("expected error for empty session key")
	}
}

func TestRequireSignedIn_NoUser_Returns401(t *testing.T) {
	sm := newTestSessionManager(t)
	handler := sm.RequireSignedIn(echoUser())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/code", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}
}

func TestRequireSignedIn_WithUser_Proceeds(t *testing.T) {
	sm := newTestSessionManager(t)
	handler := sm.RequireSignedIn(echoUser())

	req := auth.WithTestUser(httptest.NewRequest("GET", "/api/code", nil), &auth.SessionUser{ID: "u1"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "u1" {
		t.Errorf("got %d %q, want 200 u1", rec.Code, rec.Body.String())
	}
}

func TestLoadSessionUser_BearerToken(t *testing.T) {
	sm := newTestSessionManager(t)
	raw, err := sm.Tokens().Issue(auth.SessionUser{ID: "u42", Name: "ada"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	sm.LoadSessionUser(echoUser()).ServeHTTP(rec, req)

	if rec.Body.String() != "u42" {
		t.Errorf("expected user u42 from bearer token, got %q", rec.Body.String())
	}
}

func TestLoadSessionUser_QueryToken(t *testing.T) {
	sm := newTestSessionManager(t)
	raw, _ := sm.Tokens().Issue(auth.SessionUser{ID: "u7"})

	rec := httptest.NewRecorder()
	sm.LoadSessionUser(echoUser()).ServeHTTP(rec, httptest.NewRequest("GET", "/ws?token="+raw, nil))

	if rec.Body.String() != "u7" {
		t.Errorf("expected user u7 from query token, got %q", rec.Body.String())
	}
}

func TestLoadSessionUser_BadToken(t *testing.T) {
	sm := newTestSessionManager(t)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	sm.LoadSessionUser(echoUser()).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("bad token should leave the request anonymous, got %d", rec.Code)
	}
}

func TestSignIn_CookieRoundTrip(t *testing.T) {
	sm := newTestSessionManager(t)

	rec := httptest.NewRecorder()
	if err := sm.SignIn(rec, httptest.NewRequest("POST", "/api/auth/login", nil), auth.SessionUser{ID: "u9", Name: "grace"}); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected a session cookie")
	}

	req := httptest.NewRequest("GET", "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec2 := httptest.NewRecorder()
	sm.LoadSessionUser(echoUser()).ServeHTTP(rec2, req)

	if rec2.Body.String() != "u9" {
		t.Errorf("expected user u9 from cookie, got %q", rec2.Body.String())
	}
}

func TestGetSession_UndecodableCookie(t *testing.T) {
	sm := newTestSessionManager(t)

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: "test-session", Value: "garbage"})
	sess, err := sm.GetSession(req)
	if err != nil {
		t.Fatalf("expected undecodable cookie to be ignored, got %v", err)
	}
	if !sess.IsNew {
		t.Error("expected a fresh session")
	}
}

func TestAuthenticate_FetcherRejectsDeletedUser(t *testing.T) {
	sm := newTestSessionManager(t)
	sm.SetUserFetcher(fetcherFunc(func(_ context.Context, id string) *auth.SessionUser {
		if id == "gone" {
			return nil
		}
		return &auth.SessionUser{ID: id, Name: "fresh"}
	}))

	for id, wantOK := range map[string]bool{"gone": false, "here": true} {
		raw, _ := sm.Tokens().Issue(auth.SessionUser{ID: id, Name: "stale"})
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+raw)

		u, ok := sm.Authenticate(req)
		if ok != wantOK {
			t.Errorf("%s: ok=%v, want %v", id, ok, wantOK)
		}
		if ok && u.Name != "fresh" {
			t.Errorf("%s: expected fetched name, got %q", id, u.Name)
		}
	}
}

func TestCurrentUser_NoUser(t *testing.T) {
	if _, ok := auth.CurrentUser(httptest.NewRequest("GET", "/", nil)); ok {
		t.Error("expected no user")
	}
}
