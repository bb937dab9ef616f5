// internal/app/features/ws/handler.go
// Package ws is the websocket transport for the collaboration
// router. Each connection gets one reader that dispatches events in order
// and one writer that drains the registry's outbound queue.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/coderoom/internal/app/collab"
	"github.com/dalemusser/coderoom/internal/app/features/shared"
	"github.com/dalemusser/coderoom/internal/app/system/auth"
	"github.com/dalemusser/coderoom/internal/app/system/limits"
	"github.com/dalemusser/coderoom/internal/app/system/metrics"
	"github.com/dalemusser/coderoom/internal/app/system/ratelimit"
	"github.com/dalemusser/coderoom/internal/app/system/realtime"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Config wires a Handler.
type Config struct {
	Registry *realtime.Registry
	Router   *collab.Router
	Sessions *auth.SessionManager

	// AllowAnonymous accepts upgrades without a signed-in user.
	AllowAnonymous bool
	// EventsPerSecond limits inbound frames per connection. Zero disables.
	EventsPerSecond float64
	// AllowedOrigins lists browser origins allowed to connect. Empty
	// enforces same-origin; "*" allows any.
	AllowedOrigins []string

	Metrics *metrics.Metrics
	Log     *zap.Logger
}

type Handler struct {
	cfg      Config
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewHandler(cfg Config) *Handler {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		cfg: cfg,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  8192,
			WriteBufferSize: 8192,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
	}
}

// inbound is the wire shape of every client frame.
type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ServeHTTP handles GET /ws.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, signedIn := h.cfg.Sessions.Authenticate(r)
	if !signedIn && !h.cfg.AllowAnonymous {
		shared.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	id := uuid.NewString()
	c := realtime.NewConn(id, 0)
	if !h.cfg.Registry.Register(c) {
		h.log.Error("websocket: duplicate connection id", zap.String("conn_id", id))
		_ = ws.Close()
		return
	}
	log := h.log.With(zap.String("conn_id", id))
	if signedIn {
		h.cfg.Registry.Identify(id, user.ID)
		log = log.With(zap.String("user_id", user.ID))
	}
	log.Debug("websocket connected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		writePump(ws, c)
	}()

	ctx, cancel := context.WithCancel(r.Context())
	h.readPump(ctx, ws, id, log)
	cancel()

	h.cfg.Router.Disconnect(id)
	h.cfg.Registry.Unregister(id)
	<-done
	log.Debug("websocket disconnected")
}

func (h *Handler) readPump(ctx context.Context, ws *websocket.Conn, connID string, log *zap.Logger) {
	ws.SetReadLimit(limits.MaxSocketFrame)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	limiter := ratelimit.NewEventLimiter(h.cfg.EventsPerSecond)

	for {
		kind, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("websocket read failed", zap.Error(err))
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		var in inbound
		if err := json.Unmarshal(data, &in); err != nil || strings.TrimSpace(in.Event) == "" {
			h.cfg.Metrics.Event("malformed", "dropped")
			continue
		}
		if !limiter.Allow() {
			h.cfg.Metrics.Event("inbound", "rate_limited")
			continue
		}
		h.cfg.Router.Dispatch(ctx, connID, in.Event, in.Data)
	}
}

// writePump drains the connection's queue until the registry closes it or
// a write fails. Closing ws unblocks the reader.
func writePump(ws *websocket.Conn, c *realtime.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Outbound():
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[strings.ToLower(strings.TrimRight(strings.TrimSpace(o), "/"))] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || set["*"] {
			return true
		}
		return set[strings.ToLower(origin)]
	}
}
