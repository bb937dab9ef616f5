// internal/app/features/login/handler.go
package login

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dalemusser/coderoom/internal/app/features/shared"
	userstore "github.com/dalemusser/coderoom/internal/app/store/users"
	"github.com/dalemusser/coderoom/internal/app/system/auditlog"
	"github.com/dalemusser/coderoom/internal/app/system/auth"
	"github.com/dalemusser/coderoom/internal/app/system/authutil"
	"github.com/dalemusser/coderoom/internal/app/system/ratelimit"
	"github.com/dalemusser/coderoom/internal/app/system/timeouts"
	"github.com/dalemusser/coderoom/internal/domain/models"
	"go.uber.org/zap"
)

type Handler struct {
	Users      *userstore.Store
	SessionMgr *auth.SessionManager
	Limiter    *ratelimit.LoginLimiter
	AuditLog   *auditlog.Logger
	Log        *zap.Logger
}

func NewHandler(users *userstore.Store, sm *auth.SessionManager, limiter *ratelimit.LoginLimiter, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:      users,
		SessionMgr: sm,
		Limiter:    limiter,
		AuditLog:   audit,
		Log:        logger,
	}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Response is returned by login and registration.
type Response struct {
	User  models.User `json:"user"`
	Token string      `json:"token,omitempty"`
}

// HandleLogin handles POST /api/auth/login.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if !shared.DecodeJSON(w, r, &in) {
		return
	}
	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		shared.Error(w, http.StatusBadRequest, "username and password are required")
		return
	}

	if h.Limiter != nil {
		if ok, reason := h.Limiter.Check(r, username); !ok {
			h.AuditLog.LoginFailedRateLimit(r.Context(), r, username, reason)
			shared.Error(w, http.StatusTooManyRequests, reason)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByUsername(ctx, username)
	if errors.Is(err, userstore.ErrNotFound) {
		h.AuditLog.LoginFailedUserNotFound(r.Context(), r, username)
		shared.Error(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	if err != nil {
		h.Log.Error("login: user lookup failed", zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !authutil.CheckPassword(in.Password, u.PasswordHash) {
		h.AuditLog.LoginFailedWrongPassword(r.Context(), r, u.ID, u.Username)
		shared.Error(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	if h.Limiter != nil {
		h.Limiter.Succeeded(username)
	}
	token, ok := SignIn(w, r, h.SessionMgr, u, h.Log)
	if !ok {
		return
	}
	h.AuditLog.LoginSuccess(r.Context(), r, u.ID, u.Username)
	shared.WriteJSON(w, http.StatusOK, Response{User: u, Token: token})
}

// SignIn sets the session cookie and issues a bearer token when tokens are
// enabled. On failure it writes a 500 and returns false.
func SignIn(w http.ResponseWriter, r *http.Request, sm *auth.SessionManager, u models.User, log *zap.Logger) (string, bool) {
	su := auth.SessionUser{ID: u.ID.Hex(), Name: u.Username}
	if err := sm.SignIn(w, r, su); err != nil {
		log.Error("sign in: save session", zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "internal error")
		return "", false
	}
	if sm.Tokens() == nil {
		return "", true
	}
	token, err := sm.Tokens().Issue(su)
	if err != nil && !errors.Is(err, auth.ErrTokensDisabled) {
		log.Error("sign in: issue token", zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "internal error")
		return "", false
	}
	return token, true
}
