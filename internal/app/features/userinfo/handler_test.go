package userinfo_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/coderoom/internal/app/features/userinfo"
	userstore "github.com/dalemusser/coderoom/internal/app/store/users"
	"github.com/dalemusser/coderoom/internal/app/system/auth"
	"github.com/dalemusser/coderoom/internal/testutil"
	"go.uber.org/zap"
)

func TestRoutes_RequireSignIn(t *testing.T) {
	sm, err := auth.NewSessionManager("0123456789abcdef0123456789abcdef", "coderoom-session", "", time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}
	r := userinfo.Routes(userinfo.NewHandler(nil, zap.NewNop()), sm)

	rec := testutil.NewRecorder()
	r.ServeHTTP(rec, testutil.NewRequest(http.MethodGet, "/me"))
	rec.AssertStatus(t, http.StatusUnauthorized)
}

func TestServeMeAndCode(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := testutil.NewFixtures(t, db).CreateUser(ctx, "ada")
	h := userinfo.NewHandler(userstore.New(db), zap.NewNop())

	rec := testutil.NewRecorder()
	h.ServeMe(rec, testutil.WithUser(testutil.NewRequest(http.MethodGet, "/api/users/me"), u))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, u.ID.Hex())

	rec = testutil.NewRecorder()
	h.ServeCollaborationCode(rec, testutil.WithUser(testutil.NewRequest(http.MethodGet, "/api/users/collaboration-code"), u))
	rec.AssertStatus(t, http.StatusOK)
	var body map[string]string
	rec.DecodeJSON(t, &body)
	if body["collaborationCode"] != u.CollaborationCode {
		t.Errorf("code: got %q, want %q", body["collaborationCode"], u.CollaborationCode)
	}
}
