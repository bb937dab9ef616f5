// internal/app/features/video/handler.go
// Package video exposes the video session transitions over REST. The same
// transitions are reachable as realtime events; both paths share the
// coordinator.
package video

import (
	"context"
	"net/http"

	"github.com/dalemusser/coderoom/internal/app/collab"
	"github.com/dalemusser/coderoom/internal/app/features/shared"
	"github.com/dalemusser/coderoom/internal/app/system/timeouts"
	"github.com/dalemusser/coderoom/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type transition func(ctx context.Context, actorID, projectID string) (models.Project, error)

type Handler struct {
	Video *collab.VideoCoordinator
	Log   *zap.Logger
}

func NewHandler(video *collab.VideoCoordinator, logger *zap.Logger) *Handler {
	return &Handler{Video: video, Log: logger}
}

// Response is returned by every transition.
type Response struct {
	Message string         `json:"message"`
	Project models.Project `json:"project"`
}

// HandleStart handles POST /api/video/{id}/start.
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, h.Video.Start, "video session started")
}

// HandleJoin handles POST /api/video/{id}/join.
func (h *Handler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, h.Video.Join, "joined video session")
}

// HandleLeave handles POST /api/video/{id}/leave.
func (h *Handler) HandleLeave(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, h.Video.Leave, "left video session")
}

// HandleEnd handles POST /api/video/{id}/end.
func (h *Handler) HandleEnd(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, h.Video.End, "video session ended")
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request, fn transition, msg string) {
	u, _, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()
	p, err := fn(ctx, u.ID, chi.URLParam(r, "id"))
	if err != nil {
		shared.CollabError(w, h.Log, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, Response{Message: msg, Project: p})
}
