// internal/app/features/projects/routes.go
package projects

import (
	"github.com/dalemusser/coderoom/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /api/code. Static segments are registered before
// {id} so chi prefers them.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)
	r.Post("/", h.HandleCreate)
	r.Get("/", h.ServeList)
	r.Post("/collaborate", h.HandleCollaborate)
	r.Get("/session/{id}", h.ServeSession)
	r.Get("/{id}", h.ServeGet)
	r.Put("/{id}", h.HandleUpdate)
	r.Get("/{id}/activity", h.ServeActivity)
	r.Post("/{id}/accept/{userId}", h.HandleAccept)
	r.Post("/{id}/decline/{userId}", h.HandleDecline)
	return r
}
