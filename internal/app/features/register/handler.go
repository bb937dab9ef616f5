// internal/app/features/register/handler.go
// Package register creates accounts.
package register

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/coderoom/internal/app/features/login"
	"github.com/dalemusser/coderoom/internal/app/features/shared"
	userstore "github.com/dalemusser/coderoom/internal/app/store/users"
	"github.com/dalemusser/coderoom/internal/app/system/auditlog"
	"github.com/dalemusser/coderoom/internal/app/system/auth"
	"github.com/dalemusser/coderoom/internal/app/system/authutil"
	"github.com/dalemusser/coderoom/internal/app/system/timeouts"
	"go.uber.org/zap"
)

type Handler struct {
	Users      *userstore.Store
	SessionMgr *auth.SessionManager
	AuditLog   *auditlog.Logger
	Log        *zap.Logger
}

func NewHandler(users *userstore.Store, sm *auth.SessionManager, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{Users: users, SessionMgr: sm, AuditLog: audit, Log: logger}
}

type request struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleRegister handles POST /api/auth/register. A new account is signed
// in immediately.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in request
	if !shared.DecodeJSON(w, r, &in) {
		return
	}
	username, err := authutil.NormalizeUsername(in.Username)
	if err != nil {
		shared.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := authutil.ValidatePassword(in.Password); err != nil {
		shared.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := authutil.HashPassword(in.Password)
	if err != nil {
		h.Log.Error("register: hash password", zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.Create(ctx, username, hash)
	switch {
	case errors.Is(err, userstore.ErrDuplicateUsername):
		shared.Error(w, http.StatusConflict, "username is taken")
		return
	case err != nil:
		h.Log.Error("register: create user", zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	token, ok := login.SignIn(w, r, h.SessionMgr, u, h.Log)
	if !ok {
		return
	}
	h.AuditLog.Registered(r.Context(), r, u.ID, u.Username)
	shared.WriteJSON(w, http.StatusCreated, login.Response{User: u, Token: token})
}
