// Package health reports database reachability and realtime load.
package health

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/coderoom/internal/app/features/shared"
	"github.com/dalemusser/coderoom/internal/app/system/realtime"
	"github.com/dalemusser/coderoom/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Handler holds dependencies needed for health checks.
type Handler struct {
	Client   *mongo.Client
	Registry *realtime.Registry
	Log      *zap.Logger
}

// NewHandler constructs a health Handler. registry may be nil.
func NewHandler(client *mongo.Client, registry *realtime.Registry, logger *zap.Logger) *Handler {
	return &Handler{
		Client:   client,
		Registry: registry,
		Log:      logger,
	}
}

type healthResponse struct {
	Status   string          `json:"status"`
	Database string          `json:"database"`
	Message  string          `json:"message,omitempty"`
	Error    string          `json:"error,omitempty"`
	Realtime *realtime.Stats `json:"realtime,omitempty"`
}

// Serve handles GET /health. A reachable database answers 200 with
// {"status":"ok","database":"connected","realtime":{...}}; otherwise 503
// with status "error".
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Database: "connected"}
	if h.Registry != nil {
		s := h.Registry.Stats()
		resp.Realtime = &s
	}

	if err := h.ping(r.Context()); err != nil {
		h.Log.Error("health-check: mongo ping failed", zap.Error(err))
		resp.Status = "error"
		resp.Database = "disconnected"
		resp.Message = "Database unavailable"
		resp.Error = err.Error()
		shared.WriteJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

var errNoClient = errors.New("no database client")

func (h *Handler) ping(ctx context.Context) error {
	if h.Client == nil {
		return errNoClient
	}
	ctx, cancel := context.WithTimeout(ctx, timeouts.Ping())
	defer cancel()
	return h.Client.Ping(ctx, readpref.Primary())
}
