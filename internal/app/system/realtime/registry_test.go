package realtime_test

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/dalemusser/coderoom/internal/app/system/realtime"
)

func newConn(t *testing.T, r *realtime.Registry, id string, buffer int) *realtime.Conn {
	t.Helper()
	c := realtime.NewConn(id, buffer)
	if !r.Register(c) {
		t.Fatalf("Register(%s) failed", id)
	}
	return c
}

// drain returns every frame currently queued on c without blocking.
func drain(c *realtime.Conn) []realtime.Frame {
	var out []realtime.Frame
	for {
		select {
		case msg, ok := <-c.Outbound():
			if !ok {
				return out
			}
			var f realtime.Frame
			_ = json.Unmarshal(msg, &f)
			out = append(out, f)
		default:
			return out
		}
	}
}

func TestJoin_Idempotent(t *testing.T) {
	r := realtime.NewRegistry(realtime.Options{})
	newConn(t, r, "a", 0)

	r.Join("a", "room1")
	r.Join("a", "room1")

	if got := r.Members("room1"); len(got) != 1 || got[0] != "a" {
		t.Errorf("members: got %v, want [a]", got)
	}
	if r.Join("unknown", "room1") {
		t.Error("join for unknown connection should report false")
	}
}

func TestBroadcast_ExcludesOriginator(t *testing.T) {
	r := realtime.NewRegistry(realtime.Options{})
	a := newConn(t, r, "a", 0)
	b := newConn(t, r, "b", 0)
	c := newConn(t, r, "c", 0)
	outsider := newConn(t, r, "d", 0)

	for _, id := range []string{"a", "b", "c"} {
		r.Join(id, "room1")
	}
	r.Join("d", "room2")

	if n := r.Broadcast("room1", "codeUpdate", map[string]string{"code": "x"}, "a"); n != 2 {
		t.Errorf("delivered: got %d, want 2", n)
	}

	if got := drain(a); len(got) != 0 {
		t.Errorf("originator received its own event: %v", got)
	}
	for _, conn := range []*realtime.Conn{b, c} {
		got := drain(conn)
		if len(got) != 1 || got[0].Event != "codeUpdate" {
			t.Errorf("%s: got %v, want one codeUpdate", conn.ID(), got)
		}
	}
	if got := drain(outsider); len(got) != 0 {
		t.Errorf("other room received the event: %v", got)
	}
}

func TestBroadcast_IncludeEveryone(t *testing.T) {
	r := realtime.NewRegistry(realtime.Options{})
	a := newConn(t, r, "a", 0)
	r.Join("a", "room1")

	r.Broadcast("room1", "userJoined", map[string]string{"userId": "u1"}, "")

	if got := drain(a); len(got) != 1 {
		t.Errorf("got %d frames, want 1", len(got))
	}
}

func TestSendToUser(t *testing.T) {
	r := realtime.NewRegistry(realtime.Options{})
	tab1 := newConn(t, r, "tab1", 0)
	tab2 := newConn(t, r, "tab2", 0)
	other := newConn(t, r, "other", 0)

	r.Identify("tab1", "u1")
	r.Identify("tab2", "u1")
	r.Identify("other", "u2")

	if n := r.SendToUser("u1", "collaborationRequest", nil); n != 2 {
		t.Errorf("delivered: got %d, want 2", n)
	}
	if len(drain(tab1)) != 1 || len(drain(tab2)) != 1 {
		t.Error("each of u1's connections should get one frame")
	}
	if len(drain(other)) != 0 {
		t.Error("u2 should get nothing")
	}
	if n := r.SendToUser("offline", "collaborationRequest", nil); n != 0 {
		t.Errorf("offline delivery: got %d, want 0", n)
	}
}

func TestIdentify_MovesUserIndex(t *testing.T) {
	r := realtime.NewRegistry(realtime.Options{})
	newConn(t, r, "a", 0)

	r.Identify("a", "u1")
	r.Identify("a", "u2")

	if r.Online("u1") {
		t.Error("u1 should no longer be online")
	}
	if !r.Online("u2") {
		t.Error("u2 should be online")
	}
	if u, _ := r.UserOf("a"); u != "u2" {
		t.Errorf("UserOf: got %q, want u2", u)
	}
}

func TestLeave_UnknownIsNoop(t *testing.T) {
	r := realtime.NewRegistry(realtime.Options{})

	r.Leave("ghost", "room1")
	if left := r.LeaveAll("ghost"); left != nil {
		t.Errorf("LeaveAll on unknown connection: got %v, want nil", left)
	}
	r.Unregister("ghost")
}

func TestUnregister_LeavesNoEntries(t *testing.T) {
	r := realtime.NewRegistry(realtime.Options{})
	c := newConn(t, r, "a", 0)
	r.Identify("a", "u1")
	r.Join("a", "room1")
	r.Join("a", "room2")

	r.Unregister("a")

	if s := r.Stats(); s != (realtime.Stats{}) {
		t.Errorf("stats after unregister: %+v, want all zero", s)
	}
	if _, ok := <-c.Outbound(); ok {
		t.Error("outbound queue should be closed")
	}
	if n := r.Broadcast("room1", "codeUpdate", nil, ""); n != 0 {
		t.Errorf("broadcast after unregister delivered %d", n)
	}
}

func TestLeaveAll_ReturnsRooms(t *testing.T) {
	r := realtime.NewRegistry(realtime.Options{})
	newConn(t, r, "a", 0)
	newConn(t, r, "b", 0)
	r.Join("a", "r2")
	r.Join("a", "r1")
	r.Join("b", "r1")

	left := r.LeaveAll("a")
	if len(left) != 2 || left[0] != "r1" || left[1] != "r2" {
		t.Errorf("left: got %v, want [r1 r2]", left)
	}
	if r.InRoom("a", "r1") {
		t.Error("a should have left r1")
	}
	if got := r.Members("r1"); len(got) != 1 || got[0] != "b" {
		t.Errorf("r1 members: got %v, want [b]", got)
	}
	if r.Stats().Rooms != 1 {
		t.Errorf("empty room r2 should be gone, stats %+v", r.Stats())
	}
}

func TestBroadcast_FullQueueDrops(t *testing.T) {
	var mu sync.Mutex
	var dropped []string
	r := realtime.NewRegistry(realtime.Options{OnDrop: func(connID, event string) {
		mu.Lock()
		dropped = append(dropped, connID+":"+event)
		mu.Unlock()
	}})
	slow := newConn(t, r, "slow", 1)
	r.Join("slow", "room1")

	r.Broadcast("room1", "first", nil, "")
	if n := r.Broadcast("room1", "second", nil, ""); n != 0 {
		t.Errorf("full queue should not accept, delivered %d", n)
	}

	got := drain(slow)
	if len(got) != 1 || got[0].Event != "first" {
		t.Errorf("queued frames: %v, want only first", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(dropped) != 1 || dropped[0] != "slow:second" {
		t.Errorf("drops: got %v", dropped)
	}
}

func TestUsersIn(t *testing.T) {
	r := realtime.NewRegistry(realtime.Options{})
	for _, id := range []string{"a", "b", "c"} {
		newConn(t, r, id, 0)
		r.Join(id, "room1")
	}
	r.Identify("a", "u1")
	r.Identify("b", "u1")

	if got := r.UsersIn("room1"); len(got) != 1 || got[0] != "u1" {
		t.Errorf("UsersIn: got %v, want [u1]", got)
	}
}

func TestConcurrentJoinLeave(t *testing.T) {
	r := realtime.NewRegistry(realtime.Options{})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", i)
			c := realtime.NewConn(id, 4)
			r.Register(c)
			r.Join(id, "room")
			r.Broadcast("room", "codeUpdate", i, id)
			r.Unregister(id)
		}(i)
	}
	wg.Wait()

	if s := r.Stats(); s != (realtime.Stats{}) {
		t.Errorf("stats after concurrent churn: %+v", s)
	}
}

func TestClose_ClosesQueues(t *testing.T) {
	r := realtime.NewRegistry(realtime.Options{})
	c := newConn(t, r, "a", 0)
	r.Join("a", "room")

	r.Close()

	if _, ok := <-c.Outbound(); ok {
		t.Error("queue should be closed after Close")
	}
	if r.Stats().Connections != 0 {
		t.Error("registry should be empty after Close")
	}
}
