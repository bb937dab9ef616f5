// internal/app/features/projects/handler.go
// Package projects serves the REST surface for shared code documents:
// CRUD for the caller's projects, the collaboration request/decision
// endpoints and the project's activity feed.
package projects

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/dalemusser/coderoom/internal/app/collab"
	"github.com/dalemusser/coderoom/internal/app/features/shared"
	"github.com/dalemusser/coderoom/internal/app/policy/projectpolicy"
	auditstore "github.com/dalemusser/coderoom/internal/app/store/audit"
	projectstore "github.com/dalemusser/coderoom/internal/app/store/projects"
	"github.com/dalemusser/coderoom/internal/app/system/paging"
	"github.com/dalemusser/coderoom/internal/app/system/timeouts"
	"github.com/dalemusser/coderoom/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Store is the project persistence the handlers use. *projectstore.Store
// and *projectstore.Memory implement it.
type Store interface {
	Create(ctx context.Context, owner primitive.ObjectID, title, content, language string) (models.Project, error)
	Get(ctx context.Context, id primitive.ObjectID) (models.Project, error)
	ListForUser(ctx context.Context, user primitive.ObjectID) ([]models.Project, error)
	SaveContent(ctx context.Context, id primitive.ObjectID, upd projectstore.ContentUpdate) (models.Project, error)
}

// Presence reports who is connected to a project room.
type Presence interface {
	UsersIn(roomID string) []string
}

// Activity reads a project's audit trail.
type Activity interface {
	GetByProject(ctx context.Context, projectID primitive.ObjectID, limit int64) ([]auditstore.Event, error)
}

// activityLimit is the feed size when the caller sends no ?limit=.
const activityLimit = 100

type Handler struct {
	Projects Store
	Workflow *collab.Workflow
	Presence Presence
	Activity Activity
	Log      *zap.Logger
}

func NewHandler(projects Store, workflow *collab.Workflow, presence Presence, activity Activity, logger *zap.Logger) *Handler {
	return &Handler{
		Projects: projects,
		Workflow: workflow,
		Presence: presence,
		Activity: activity,
		Log:      logger,
	}
}

type createRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Language string `json:"language"`
}

// updateRequest leaves absent fields untouched.
type updateRequest struct {
	Title    *string `json:"title"`
	Content  *string `json:"content"`
	Language *string `json:"language"`
}

type collaborateRequest struct {
	CollaborationCode string `json:"collaborationCode"`
	ProjectID         string `json:"projectId"`
}

// SessionResponse is the editor's initial state.
type SessionResponse struct {
	Project models.Project `json:"project"`
	Online  []string       `json:"online"`
}

// HandleCreate handles POST /api/code.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	_, uid, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	var req createRequest
	if !shared.DecodeJSON(w, r, &req) {
		return
	}
	title := strings.TrimSpace(req.Title)
	lang := strings.ToLower(strings.TrimSpace(req.Language))
	if tooLong(title, collab.MaxTitleRunes) || tooLong(lang, collab.MaxLanguageRunes) {
		shared.Error(w, http.StatusBadRequest, "title or language too long")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	p, err := h.Projects.Create(ctx, uid, title, req.Content, lang)
	if err != nil {
		h.Log.Error("projects: create", zap.String("user_id", uid.Hex()), zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	shared.WriteJSON(w, http.StatusCreated, p)
}

// ServeList handles GET /api/code.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	_, uid, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	list, err := h.Projects.ListForUser(ctx, uid)
	if err != nil {
		h.Log.Error("projects: list", zap.String("user_id", uid.Hex()), zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if list == nil {
		list = []models.Project{}
	}
	shared.WriteJSON(w, http.StatusOK, list)
}

// load fetches the {id} project and checks that the caller may perform a.
func (h *Handler) load(w http.ResponseWriter, r *http.Request, a projectpolicy.Action) (models.Project, primitive.ObjectID, bool) {
	_, uid, ok := shared.Caller(w, r)
	if !ok {
		return models.Project{}, uid, false
	}
	id, err := projectstore.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		shared.Error(w, http.StatusNotFound, "project not found")
		return models.Project{}, uid, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	p, err := h.Projects.Get(ctx, id)
	if errors.Is(err, projectstore.ErrNotFound) {
		shared.Error(w, http.StatusNotFound, "project not found")
		return models.Project{}, uid, false
	}
	if err != nil {
		h.Log.Error("projects: load", zap.String("project_id", id.Hex()), zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "internal error")
		return models.Project{}, uid, false
	}
	if !projectpolicy.Allowed(p, uid, a) {
		shared.Error(w, http.StatusForbidden, "access denied")
		return models.Project{}, uid, false
	}
	return p, uid, true
}

// ServeGet handles GET /api/code/{id}.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	p, _, ok := h.load(w, r, projectpolicy.View)
	if !ok {
		return
	}
	shared.WriteJSON(w, http.StatusOK, p)
}

// HandleUpdate handles PUT /api/code/{id}, the editor's explicit save.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	p, _, ok := h.load(w, r, projectpolicy.Edit)
	if !ok {
		return
	}
	var req updateRequest
	if !shared.DecodeJSON(w, r, &req) {
		return
	}
	upd := projectstore.ContentUpdate{Content: req.Content}
	if req.Title != nil {
		t := strings.TrimSpace(*req.Title)
		if tooLong(t, collab.MaxTitleRunes) {
			shared.Error(w, http.StatusBadRequest, "title too long")
			return
		}
		upd.Title = &t
	}
	if req.Language != nil {
		l := strings.ToLower(strings.TrimSpace(*req.Language))
		if l == "" || tooLong(l, collab.MaxLanguageRunes) {
			shared.Error(w, http.StatusBadRequest, "invalid language")
			return
		}
		upd.Language = &l
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	saved, err := h.Projects.SaveContent(ctx, p.ID, upd)
	if errors.Is(err, projectstore.ErrNotFound) {
		shared.Error(w, http.StatusNotFound, "project not found")
		return
	}
	if err != nil {
		h.Log.Error("projects: save", zap.String("project_id", p.ID.Hex()), zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	shared.WriteJSON(w, http.StatusOK, saved)
}

// ServeSession handles GET /api/code/session/{id}.
func (h *Handler) ServeSession(w http.ResponseWriter, r *http.Request) {
	p, _, ok := h.load(w, r, projectpolicy.View)
	if !ok {
		return
	}
	online := []string{}
	if h.Presence != nil {
		if users := h.Presence.UsersIn(collab.RoomID(p.ID)); users != nil {
			online = users
		}
	}
	shared.WriteJSON(w, http.StatusOK, SessionResponse{Project: p, Online: online})
}

// HandleCollaborate handles POST /api/code/collaborate. Without a
// projectId the owner's most recently updated project is requested.
func (h *Handler) HandleCollaborate(w http.ResponseWriter, r *http.Request) {
	u, _, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	var req collaborateRequest
	if !shared.DecodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.CollaborationCode) == "" {
		shared.Error(w, http.StatusBadRequest, "collaborationCode is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()
	inv, err := h.Workflow.RequestByCode(ctx, u.ID, strings.TrimSpace(req.CollaborationCode), req.ProjectID)
	if err != nil {
		shared.CollabError(w, h.Log, err)
		return
	}
	msg := "collaboration request sent"
	if inv.AlreadyMember {
		msg = "already a collaborator"
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{
		"message":         msg,
		"collaborationId": inv.ID,
		"projectId":       inv.ProjectID,
	})
}

// HandleAccept handles POST /api/code/{id}/accept/{userId}.
func (h *Handler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.Workflow.Accept)
}

// HandleDecline handles POST /api/code/{id}/decline/{userId}.
func (h *Handler) HandleDecline(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.Workflow.Decline)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, ownerID, projectID, userID string) (models.Project, error)) {
	u, _, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()
	p, err := fn(ctx, u.ID, chi.URLParam(r, "id"), chi.URLParam(r, "userId"))
	if err != nil {
		shared.CollabError(w, h.Log, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, p)
}

// ServeActivity handles GET /api/code/{id}/activity.
func (h *Handler) ServeActivity(w http.ResponseWriter, r *http.Request) {
	p, _, ok := h.load(w, r, projectpolicy.Manage)
	if !ok {
		return
	}
	events := []auditstore.Event{}
	if h.Activity != nil {
		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
		defer cancel()
		got, err := h.Activity.GetByProject(ctx, p.ID, paging.ParseLimit(r, activityLimit))
		if err != nil {
			h.Log.Error("projects: activity", zap.String("project_id", p.ID.Hex()), zap.Error(err))
			shared.Error(w, http.StatusInternalServerError, "internal error")
			return
		}
		if got != nil {
			events = got
		}
	}
	shared.WriteJSON(w, http.StatusOK, events)
}

// tooLong counts runes so titles match the realtime titleChange limit.
func tooLong(s string, limit int) bool {
	return utf8.RuneCountInString(s) > limit
}
