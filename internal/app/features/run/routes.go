// internal/app/features/run/routes.go
package run

import (
	"github.com/dalemusser/coderoom/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /api/code/run.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)
	r.Post("/", h.HandleRun)
	r.Post("/{id}", h.HandleRunSaved)
	return r
}
