package collab_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/dalemusser/coderoom/internal/app/collab"
	projectstore "github.com/dalemusser/coderoom/internal/app/store/projects"
	"github.com/dalemusser/coderoom/internal/app/system/realtime"
	"github.com/dalemusser/coderoom/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type directory struct {
	mu     sync.Mutex
	byID   map[primitive.ObjectID]collab.Person
	byCode map[string]collab.Person
}

func (d *directory) PersonByID(_ context.Context, id primitive.ObjectID) (collab.Person, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.byID[id]
	if !ok {
		return collab.Person{}, collab.ErrNotFound
	}
	return p, nil
}

func (d *directory) PersonByCode(_ context.Context, code string) (collab.Person, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.byCode[code]
	if !ok {
		return collab.Person{}, collab.ErrNotFound
	}
	return p, nil
}

type harness struct {
	t      *testing.T
	ctx    context.Context
	docs   *projectstore.Memory
	dir    *directory
	reg    *realtime.Registry
	flow   *collab.Workflow
	video  *collab.VideoCoordinator
	router *collab.Router
}

func newHarness(t *testing.T, anonymous bool) *harness {
	t.Helper()
	h := &harness{
		t:    t,
		ctx:  context.Background(),
		docs: projectstore.NewMemory(),
		dir: &directory{
			byID:   make(map[primitive.ObjectID]collab.Person),
			byCode: make(map[string]collab.Person),
		},
		reg: realtime.NewRegistry(realtime.Options{}),
	}
	deps := collab.Deps{Docs: h.docs, People: h.dir, Notify: h.reg}
	h.flow = collab.NewWorkflow(deps)
	h.video = collab.NewVideoCoordinator(deps)
	h.router = collab.NewRouter(collab.RouterConfig{
		Registry:       h.reg,
		Workflow:       h.flow,
		Video:          h.video,
		AllowAnonymous: anonymous,
	})
	t.Cleanup(h.reg.Close)
	return h
}

// user registers a person whose collaboration code is "CODE-" + name.
func (h *harness) user(name string) collab.Person {
	p := collab.Person{ID: primitive.NewObjectID(), Username: name}
	h.dir.mu.Lock()
	h.dir.byID[p.ID] = p
	h.dir.byCode["CODE-"+name] = p
	h.dir.mu.Unlock()
	return p
}

func (h *harness) project(owner collab.Person, title string) models.Project {
	h.t.Helper()
	p, err := h.docs.Create(h.ctx, owner.ID, title, "", "")
	if err != nil {
		h.t.Fatalf("Create failed: %v", err)
	}
	return p
}

func (h *harness) reload(p models.Project) models.Project {
	h.t.Helper()
	got, err := h.docs.Get(h.ctx, p.ID)
	if err != nil {
		h.t.Fatalf("Get failed: %v", err)
	}
	return got
}

// conn registers a connection, identified as user unless user is zero.
func (h *harness) conn(id string, user collab.Person) *realtime.Conn {
	h.t.Helper()
	c := realtime.NewConn(id, 0)
	if !h.reg.Register(c) {
		h.t.Fatalf("Register(%s) failed", id)
	}
	if !user.ID.IsZero() {
		h.reg.Identify(id, user.ID.Hex())
	}
	return c
}

func (h *harness) send(connID, event string, payload any) {
	h.t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		h.t.Fatalf("marshal: %v", err)
	}
	h.router.Dispatch(h.ctx, connID, event, data)
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func drain(c *realtime.Conn) []frame {
	var out []frame
	for {
		select {
		case msg, ok := <-c.Outbound():
			if !ok {
				return out
			}
			var f frame
			_ = json.Unmarshal(msg, &f)
			out = append(out, f)
		default:
			return out
		}
	}
}

func events(frames []frame) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f.Event
	}
	return out
}

func find(frames []frame, event string) (frame, bool) {
	for _, f := range frames {
		if f.Event == event {
			return f, true
		}
	}
	return frame{}, false
}

func decodeData(t *testing.T, f frame, v any) {
	t.Helper()
	if err := json.Unmarshal(f.Data, v); err != nil {
		t.Fatalf("decode %s: %v", f.Event, err)
	}
}

func checkVideoInvariant(t *testing.T, p models.Project) {
	t.Helper()
	if p.VideoSessionActive != (len(p.VideoSessionParticipants) > 0) {
		t.Errorf("videoSessionActive=%v with %d participants", p.VideoSessionActive, len(p.VideoSessionParticipants))
	}
	for _, id := range p.VideoSessionParticipants {
		if !p.IsMember(id) {
			t.Errorf("participant %s is not a member", id.Hex())
		}
	}
}

func checkMembershipInvariant(t *testing.T, p models.Project) {
	t.Helper()
	for _, id := range p.Collaborators {
		if p.IsPending(id) {
			t.Errorf("%s is both collaborator and pending", id.Hex())
		}
	}
}
