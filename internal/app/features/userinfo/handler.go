// internal/app/features/userinfo/handler.go
// Package userinfo serves the caller's own account details.
package userinfo

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/coderoom/internal/app/features/shared"
	userstore "github.com/dalemusser/coderoom/internal/app/store/users"
	"github.com/dalemusser/coderoom/internal/app/system/timeouts"
	"github.com/dalemusser/coderoom/internal/domain/models"
	"go.uber.org/zap"
)

type Handler struct {
	Users *userstore.Store
	Log   *zap.Logger
}

func NewHandler(users *userstore.Store, logger *zap.Logger) *Handler {
	return &Handler{Users: users, Log: logger}
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	_, id, ok := shared.Caller(w, r)
	if !ok {
		return models.User{}, false
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByID(ctx, id)
	if errors.Is(err, userstore.ErrNotFound) {
		shared.Error(w, http.StatusNotFound, "user not found")
		return models.User{}, false
	}
	if err != nil {
		h.Log.Error("userinfo: load user", zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "internal error")
		return models.User{}, false
	}
	return u, true
}

// ServeMe handles GET /api/users/me.
func (h *Handler) ServeMe(w http.ResponseWriter, r *http.Request) {
	u, ok := h.load(w, r)
	if !ok {
		return
	}
	shared.WriteJSON(w, http.StatusOK, u)
}

// ServeCollaborationCode handles GET /api/users/collaboration-code.
func (h *Handler) ServeCollaborationCode(w http.ResponseWriter, r *http.Request) {
	u, ok := h.load(w, r)
	if !ok {
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{"collaborationCode": u.CollaborationCode})
}
