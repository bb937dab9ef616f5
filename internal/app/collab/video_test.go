package collab_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/dalemusser/coderoom/internal/app/collab"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestVideoScenario(t *testing.T) {
	h := newHarness(t, false)
	x := h.user("x")
	y := h.user("y")
	p := h.project(x, "doc")
	p.AddCollaborator(y.ID)
	h.docs.Put(p)
	pid := p.ID.Hex()
	watcher := h.conn("watcher", collab.Person{})
	h.reg.Join("watcher", collab.RoomID(p.ID))

	got, err := h.video.Start(h.ctx, x.ID.Hex(), pid)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	checkVideoInvariant(t, got)
	if !got.VideoSessionActive || len(got.VideoSessionParticipants) != 1 || got.VideoSessionParticipants[0] != x.ID {
		t.Fatalf("after start: %v", got.VideoSessionParticipants)
	}

	got, err = h.video.Join(h.ctx, y.ID.Hex(), pid)
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	checkVideoInvariant(t, got)
	if len(got.VideoSessionParticipants) != 2 || got.VideoSessionParticipants[1] != y.ID {
		t.Fatalf("after join: %v", got.VideoSessionParticipants)
	}

	got, err = h.video.Leave(h.ctx, x.ID.Hex(), pid)
	if err != nil {
		t.Fatalf("Leave(x) failed: %v", err)
	}
	checkVideoInvariant(t, got)
	if !got.VideoSessionActive || len(got.VideoSessionParticipants) != 1 || got.VideoSessionParticipants[0] != y.ID {
		t.Fatalf("after x leaves: %v", got.VideoSessionParticipants)
	}

	got, err = h.video.Leave(h.ctx, y.ID.Hex(), pid)
	if err != nil {
		t.Fatalf("Leave(y) failed: %v", err)
	}
	checkVideoInvariant(t, got)
	if got.VideoSessionActive || len(got.VideoSessionParticipants) != 0 {
		t.Fatalf("after y leaves: active=%v %v", got.VideoSessionActive, got.VideoSessionParticipants)
	}
	checkVideoInvariant(t, h.reload(p))

	want := []string{
		collab.EventVideoChatStarted,
		collab.EventUserJoinedVideoChat,
		collab.EventUserLeftVideoChat,
		collab.EventUserLeftVideoChat,
		collab.EventVideoChatEnded,
	}
	gotEvents := events(drain(watcher))
	if len(gotEvents) != len(want) {
		t.Fatalf("room events: got %v, want %v", gotEvents, want)
	}
	for i := range want {
		if gotEvents[i] != want[i] {
			t.Errorf("event %d: got %s, want %s", i, gotEvents[i], want[i])
		}
	}
}

func TestVideoStart_Payload(t *testing.T) {
	h := newHarness(t, false)
	x := h.user("x")
	p := h.project(x, "doc")
	tab := h.conn("tab", x)
	h.reg.Join("tab", collab.RoomID(p.ID))

	if _, err := h.video.Start(h.ctx, x.ID.Hex(), p.ID.Hex()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	f, ok := find(drain(tab), collab.EventVideoChatStarted)
	if !ok {
		t.Fatal("no videoChatStarted")
	}
	var started collab.VideoStarted
	decodeData(t, f, &started)
	if started.CodeID != p.ID.Hex() || started.Initiator != x.ID.Hex() {
		t.Errorf("payload: %+v", started)
	}
}

func TestVideoJoin_Errors(t *testing.T) {
	h := newHarness(t, false)
	x := h.user("x")
	y := h.user("y")
	stranger := h.user("stranger")
	p := h.project(x, "doc")
	p.AddCollaborator(y.ID)
	h.docs.Put(p)

	if _, err := h.video.Join(h.ctx, y.ID.Hex(), p.ID.Hex()); !errors.Is(err, collab.ErrNoActiveSession) {
		t.Errorf("join inactive: got %v, want ErrNoActiveSession", err)
	}
	if _, err := h.video.Start(h.ctx, x.ID.Hex(), p.ID.Hex()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := h.video.Join(h.ctx, stranger.ID.Hex(), p.ID.Hex()); !errors.Is(err, collab.ErrForbidden) {
		t.Errorf("stranger join: got %v, want ErrForbidden", err)
	}
	if _, err := h.video.Join(h.ctx, y.ID.Hex(), primitive.NewObjectID().Hex()); !errors.Is(err, collab.ErrNotFound) {
		t.Errorf("missing project: got %v, want ErrNotFound", err)
	}

	got, err := h.video.Join(h.ctx, y.ID.Hex(), p.ID.Hex())
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	again, err := h.video.Join(h.ctx, y.ID.Hex(), p.ID.Hex())
	if err != nil {
		t.Fatalf("second Join failed: %v", err)
	}
	if len(again.VideoSessionParticipants) != len(got.VideoSessionParticipants) {
		t.Errorf("join should be idempotent: %v", again.VideoSessionParticipants)
	}
}

func TestVideoLeave_NotParticipantIsNoop(t *testing.T) {
	h := newHarness(t, false)
	x := h.user("x")
	y := h.user("y")
	p := h.project(x, "doc")
	tab := h.conn("tab", x)
	h.reg.Join("tab", collab.RoomID(p.ID))
	before := h.docs.Replaces()

	got, err := h.video.Leave(h.ctx, y.ID.Hex(), p.ID.Hex())
	if err != nil {
		t.Fatalf("Leave failed: %v", err)
	}
	checkVideoInvariant(t, got)
	if h.docs.Replaces() != before {
		t.Error("no-op leave should not write")
	}
	if frames := drain(tab); len(frames) != 0 {
		t.Errorf("no-op leave broadcast: %v", events(frames))
	}
}

func TestVideoEnd_ClearsParticipants(t *testing.T) {
	h := newHarness(t, false)
	x := h.user("x")
	y := h.user("y")
	p := h.project(x, "doc")
	p.AddCollaborator(y.ID)
	h.docs.Put(p)

	h.video.Start(h.ctx, x.ID.Hex(), p.ID.Hex())
	h.video.Join(h.ctx, y.ID.Hex(), p.ID.Hex())

	got, err := h.video.End(h.ctx, x.ID.Hex(), p.ID.Hex())
	if err != nil {
		t.Fatalf("End failed: %v", err)
	}
	checkVideoInvariant(t, got)
	if got.VideoSessionActive || len(got.VideoSessionParticipants) != 0 {
		t.Errorf("after end: %+v", got.VideoSessionParticipants)
	}
}

func TestReconcile(t *testing.T) {
	h := newHarness(t, false)
	x := h.user("x")
	y := h.user("y")
	p := h.project(x, "doc")
	p.AddCollaborator(y.ID)
	p.AddParticipant(x.ID)
	p.AddParticipant(y.ID)
	h.docs.Put(p)
	watcher := h.conn("watcher", collab.Person{})
	h.reg.Join("watcher", collab.RoomID(p.ID))

	online := map[string]bool{y.ID.Hex(): true}
	removed, err := h.video.Reconcile(h.ctx, p.ID.Hex(), func(id string) bool { return online[id] })
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if len(removed) != 1 || removed[0] != x.ID.Hex() {
		t.Errorf("removed: %v", removed)
	}
	stored := h.reload(p)
	checkVideoInvariant(t, stored)
	if !stored.VideoSessionActive || stored.InVideo(x.ID) {
		t.Errorf("after first pass: %v", stored.VideoSessionParticipants)
	}

	removed, err = h.video.Reconcile(h.ctx, p.ID.Hex(), func(string) bool { return false })
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if len(removed) != 1 {
		t.Errorf("removed: %v", removed)
	}
	if h.reload(p).VideoSessionActive {
		t.Error("session should end when nobody is online")
	}
	if _, ok := find(drain(watcher), collab.EventVideoChatEnded); !ok {
		t.Error("room not told the session ended")
	}

	before := h.docs.Replaces()
	removed, err = h.video.Reconcile(h.ctx, p.ID.Hex(), func(string) bool { return false })
	if err != nil || removed != nil || h.docs.Replaces() != before {
		t.Errorf("idle reconcile: removed=%v err=%v", removed, err)
	}
}

func TestRelay(t *testing.T) {
	h := newHarness(t, false)
	a := h.conn("a", collab.Person{})
	b := h.conn("b", collab.Person{})
	h.reg.Join("a", "room")
	h.reg.Join("b", "room")

	n := h.video.Relay("a", "user-a", "room", collab.EventOffer, json.RawMessage(`{"sdp":"v=0"}`))
	if n != 1 {
		t.Errorf("delivered: got %d, want 1", n)
	}
	if got := drain(a); len(got) != 0 {
		t.Errorf("sender got its own signal: %v", events(got))
	}
	frames := drain(b)
	if len(frames) != 1 || frames[0].Event != collab.EventOffer {
		t.Fatalf("receiver frames: %v", events(frames))
	}
	var sig collab.Signal
	decodeData(t, frames[0], &sig)
	if sig.From != "user-a" || string(sig.Payload) != `{"sdp":"v=0"}` {
		t.Errorf("signal: from=%s payload=%s", sig.From, sig.Payload)
	}
}
