// internal/app/features/video/routes.go
package video

import (
	"github.com/dalemusser/coderoom/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /api/video.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)
	r.Route("/{id}", func(r chi.Router) {
		r.Post("/start", h.HandleStart)
		r.Post("/join", h.HandleJoin)
		r.Post("/leave", h.HandleLeave)
		r.Post("/end", h.HandleEnd)
	})
	return r
}
