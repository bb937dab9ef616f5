// internal/app/features/run/handler.go
// Package run executes project source on the server and returns its output.
package run

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/coderoom/internal/app/features/shared"
	"github.com/dalemusser/coderoom/internal/app/policy/projectpolicy"
	projectstore "github.com/dalemusser/coderoom/internal/app/store/projects"
	"github.com/dalemusser/coderoom/internal/app/system/executor"
	"github.com/dalemusser/coderoom/internal/app/system/timeouts"
	"github.com/dalemusser/coderoom/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Runner executes a program. *executor.Runner implements it.
type Runner interface {
	Run(ctx context.Context, language, content string) (executor.Result, error)
}

// Projects loads saved projects for RunSaved.
type Projects interface {
	Get(ctx context.Context, id primitive.ObjectID) (models.Project, error)
}

type Handler struct {
	Runner   Runner
	Projects Projects
	// Enabled gates both endpoints; when false they answer 503.
	Enabled bool
	Log     *zap.Logger
}

func NewHandler(runner Runner, projects Projects, enabled bool, logger *zap.Logger) *Handler {
	return &Handler{Runner: runner, Projects: projects, Enabled: enabled, Log: logger}
}

type runRequest struct {
	Content  string `json:"content"`
	Language string `json:"language"`
}

// HandleRun handles POST /api/code/run.
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	if _, _, ok := shared.Caller(w, r); !ok {
		return
	}
	var req runRequest
	if !shared.DecodeJSON(w, r, &req) {
		return
	}
	h.execute(w, r, req.Language, req.Content)
}

// HandleRunSaved handles POST /api/code/run/{id}. Only the owner may run a
// saved project.
func (h *Handler) HandleRunSaved(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	_, uid, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	id, err := projectstore.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		shared.Error(w, http.StatusNotFound, "project not found")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	p, err := h.Projects.Get(ctx, id)
	cancel()
	if errors.Is(err, projectstore.ErrNotFound) {
		shared.Error(w, http.StatusNotFound, "project not found")
		return
	}
	if err != nil {
		h.Log.Error("run: load project", zap.String("project_id", id.Hex()), zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !projectpolicy.Allowed(p, uid, projectpolicy.Run) {
		shared.Error(w, http.StatusForbidden, "access denied")
		return
	}
	h.execute(w, r, p.Language, p.Content)
}

func (h *Handler) available(w http.ResponseWriter) bool {
	if !h.Enabled || h.Runner == nil {
		shared.Error(w, http.StatusServiceUnavailable, "code execution is disabled")
		return false
	}
	return true
}

func (h *Handler) execute(w http.ResponseWriter, r *http.Request, language, content string) {
	res, err := h.Runner.Run(r.Context(), language, content)
	switch {
	case err == nil:
		shared.WriteJSON(w, http.StatusOK, res)
	case errors.Is(err, executor.ErrUnsupportedLanguage), errors.Is(err, executor.ErrEmptyProgram):
		shared.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, executor.ErrTimeout):
		shared.WriteJSON(w, http.StatusRequestTimeout, map[string]any{
			"error":  err.Error(),
			"output": res.Output,
		})
	case errors.Is(err, executor.ErrToolchainMissing):
		h.Log.Warn("run: toolchain missing", zap.String("language", language), zap.Error(err))
		shared.Error(w, http.StatusServiceUnavailable, "language is not available on this server")
	default:
		h.Log.Error("run: execute", zap.String("language", language), zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "internal error")
	}
}
