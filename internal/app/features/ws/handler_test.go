package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/coderoom/internal/app/collab"
	"github.com/dalemusser/coderoom/internal/app/features/ws"
	projectstore "github.com/dalemusser/coderoom/internal/app/store/projects"
	"github.com/dalemusser/coderoom/internal/app/system/auth"
	"github.com/dalemusser/coderoom/internal/app/system/realtime"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

type noDirectory struct{}

func (noDirectory) PersonByID(context.Context, primitive.ObjectID) (collab.Person, error) {
	return collab.Person{}, collab.ErrNotFound
}

func (noDirectory) PersonByCode(context.Context, string) (collab.Person, error) {
	return collab.Person{}, collab.ErrNotFound
}

type env struct {
	t    *testing.T
	srv  *httptest.Server
	reg  *realtime.Registry
	docs *projectstore.Memory
	sm   *auth.SessionManager
}

func newEnv(t *testing.T, cfg ws.Config) *env {
	t.Helper()
	e := &env{
		t:    t,
		reg:  realtime.NewRegistry(realtime.Options{}),
		docs: projectstore.NewMemory(),
	}
	sm, err := auth.NewSessionManager("0123456789abcdef0123456789abcdef", "coderoom-session", "", time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}
	sm.SetTokens(auth.NewTokens("test-secret-test-secret-test-secret", time.Hour))
	e.sm = sm

	deps := collab.Deps{Docs: e.docs, People: noDirectory{}, Notify: e.reg}
	cfg.Registry = e.reg
	cfg.Sessions = sm
	cfg.Router = collab.NewRouter(collab.RouterConfig{
		Registry: e.reg,
		Workflow: collab.NewWorkflow(deps),
		Video:    collab.NewVideoCoordinator(deps),
	})

	r := chi.NewRouter()
	r.Mount("/ws", ws.Routes(ws.NewHandler(cfg)))
	e.srv = httptest.NewServer(r)
	return e
}

func (e *env) Close() {
	e.srv.Close()
	e.reg.Close()
}

func (e *env) url(token string) string {
	u := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws"
	if token != "" {
		u += "?token=" + token
	}
	return u
}

func (e *env) dial(userID string) *websocket.Conn {
	e.t.Helper()
	tok, err := e.sm.Tokens().Issue(auth.SessionUser{ID: userID, Name: "user"})
	if err != nil {
		e.t.Fatalf("Issue failed: %v", err)
	}
	c, _, err := websocket.DefaultDialer.Dial(e.url(tok), nil)
	if err != nil {
		e.t.Fatalf("Dial failed: %v", err)
	}
	return c
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func send(t *testing.T, c *websocket.Conn, event string, data any) {
	t.Helper()
	if err := c.WriteJSON(map[string]any{"event": event, "data": data}); err != nil {
		t.Fatalf("write %s: %v", event, err)
	}
}

// await reads frames until event arrives or the deadline passes.
func await(t *testing.T, c *websocket.Conn, event string) frame {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var f frame
		if err := c.ReadJSON(&f); err != nil {
			t.Fatalf("waiting for %s: %v", event, err)
		}
		if f.Event == event {
			return f
		}
	}
}

func TestUpgrade_RequiresSignIn(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	e := newEnv(t, ws.Config{})
	defer e.Close()

	_, resp, err := websocket.DefaultDialer.Dial(e.url(""), nil)
	if err == nil {
		t.Fatal("dial without credentials should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("response: %+v", resp)
	}
	resp.Body.Close()

	_, resp, err = websocket.DefaultDialer.Dial(e.url("not-a-token"), nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token: err=%v resp=%+v", err, resp)
	}
	resp.Body.Close()
}

func TestUpgrade_RejectsForeignOrigin(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	e := newEnv(t, ws.Config{AllowAnonymous: true, AllowedOrigins: []string{"https://app.example.com/"}})
	defer e.Close()

	h := http.Header{}
	h.Set("Origin", "https://evil.example.com")
	_, resp, err := websocket.DefaultDialer.Dial(e.url(""), h)
	if err == nil || resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign origin: err=%v resp=%+v", err, resp)
	}
	resp.Body.Close()

	h.Set("Origin", "https://app.example.com")
	c, _, err := websocket.DefaultDialer.Dial(e.url(""), h)
	if err != nil {
		t.Fatalf("allowed origin: %v", err)
	}
	c.Close()
}

func TestSession_RelaysAndAnnouncesDeparture(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	e := newEnv(t, ws.Config{})
	defer e.Close()

	owner := primitive.NewObjectID()
	peer := primitive.NewObjectID()
	p, err := e.docs.Create(context.Background(), owner, "doc", "", "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	room := collab.RoomID(p.ID)

	a := e.dial(owner.Hex())
	defer a.Close()
	b := e.dial(peer.Hex())
	defer b.Close()

	send(t, a, collab.EventJoinRoom, map[string]string{"roomId": room})
	await(t, a, collab.EventUserJoined)
	send(t, b, collab.EventJoinRoom, map[string]string{"roomId": room})
	await(t, b, collab.EventUserJoined)

	send(t, a, collab.EventCodeChange, map[string]string{"roomId": room, "code": "let x = 42"})
	var upd collab.CodeUpdate
	if err := json.Unmarshal(await(t, b, collab.EventCodeUpdate).Data, &upd); err != nil {
		t.Fatalf("decode codeUpdate: %v", err)
	}
	if upd.Code != "let x = 42" || upd.RoomID != room {
		t.Errorf("codeUpdate: %+v", upd)
	}

	if stored, err := e.docs.Get(context.Background(), p.ID); err != nil || !stored.IsCollaborator(peer) {
		t.Errorf("peer not admitted: err=%v", err)
	}

	a.Close()
	var left collab.Presence
	if err := json.Unmarshal(await(t, b, collab.EventUserLeft).Data, &left); err != nil {
		t.Fatalf("decode userLeft: %v", err)
	}
	if left.UserID != owner.Hex() {
		t.Errorf("userLeft: %+v", left)
	}
}

func TestSession_RateLimitsInboundFrames(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	e := newEnv(t, ws.Config{EventsPerSecond: 1})
	defer e.Close()

	owner := primitive.NewObjectID()
	peer := primitive.NewObjectID()
	p, err := e.docs.Create(context.Background(), owner, "doc", "", "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	room := collab.RoomID(p.ID)

	a := e.dial(owner.Hex())
	defer a.Close()
	b := e.dial(peer.Hex())
	defer b.Close()

	send(t, a, collab.EventJoinRoom, map[string]string{"roomId": room})
	await(t, a, collab.EventUserJoined)
	send(t, b, collab.EventJoinRoom, map[string]string{"roomId": room})
	await(t, b, collab.EventUserJoined)

	const burst = 10
	for i := 0; i < burst; i++ {
		send(t, a, collab.EventCodeChange, map[string]string{"roomId": room, "code": "x"})
	}

	got := 0
	_ = b.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	for {
		var f frame
		if err := b.ReadJSON(&f); err != nil {
			break
		}
		if f.Event == collab.EventCodeUpdate {
			got++
		}
	}
	if got == 0 || got >= burst {
		t.Errorf("delivered %d of %d frames", got, burst)
	}
}
