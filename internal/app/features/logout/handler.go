// internal/app/features/logout/handler.go
package logout

import (
	"net/http"

	"github.com/dalemusser/coderoom/internal/app/features/shared"
	"github.com/dalemusser/coderoom/internal/app/system/auditlog"
	"github.com/dalemusser/coderoom/internal/app/system/auth"
	"go.uber.org/zap"
)

type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	AuditLog   *auditlog.Logger
}

func NewHandler(sessionMgr *auth.SessionManager, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Log:        logger,
		SessionMgr: sessionMgr,
		AuditLog:   audit,
	}
}

// HandleLogout handles POST /api/auth/logout. Bearer tokens are stateless
// and stay valid until they expire; only the cookie is cleared.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	userID := ""
	if u, ok := auth.CurrentUser(r); ok {
		userID = u.ID
	}

	if err := h.SessionMgr.SignOut(w, r); err != nil {
		// Decode failures are already absorbed by GetSession; this is a save error.
		h.Log.Warn("logout: clear session", zap.Error(err))
	}
	if userID != "" {
		h.AuditLog.Logout(r.Context(), r, userID)
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{"message": "signed out"})
}
