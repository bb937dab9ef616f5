// internal/app/system/realtime/registry.go
// Package realtime tracks live connections, the rooms they joined and the
// users they belong to, and fans encoded frames out to them.
//
// Rooms are not stored as objects: a room exists while at least one
// connection has joined it and disappears with its last member. All
// delivery is fire-and-forget. A connection whose queue is full misses the
// frame; nothing is buffered or retried.
//
// State is process-local, so every participant of a project must be
// connected to the same server instance.
package realtime

import (
	"encoding/json"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Options configures a Registry.
type Options struct {
	Log *zap.Logger
	// OnDrop is called (outside the registry lock) for every frame that could
	// not be queued.
	OnDrop func(connID, event string)
}

// Stats is a point-in-time count of registry contents.
type Stats struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
	Users       int `json:"users"`
}

type entry struct {
	conn  *Conn
	user  string
	rooms map[string]struct{}
}

// Registry is the process-wide session registry. Create one at startup and
// Close it at shutdown.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*entry
	rooms map[string]map[string]struct{} // room id -> conn ids
	users map[string]map[string]struct{} // user id -> conn ids

	log    *zap.Logger
	onDrop func(connID, event string)
}

// NewRegistry returns an empty registry.
func NewRegistry(opts Options) *Registry {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		conns:  make(map[string]*entry),
		rooms:  make(map[string]map[string]struct{}),
		users:  make(map[string]map[string]struct{}),
		log:    log,
		onDrop: opts.OnDrop,
	}
}

// Register adds c. Registering an id twice replaces nothing and returns
// false.
func (r *Registry) Register(c *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[c.id]; ok {
		return false
	}
	r.conns[c.id] = &entry{conn: c, rooms: make(map[string]struct{})}
	return true
}

// Unregister removes the connection from every room and from its user's
// index, then closes its outbound queue. Unknown ids are ignored.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	e, ok := r.conns[connID]
	if ok {
		r.leaveAllLocked(connID, e)
		r.unindexUserLocked(connID, e.user)
		delete(r.conns, connID)
	}
	r.mu.Unlock()

	if ok {
		e.conn.close()
	}
}

// Identify binds a user id to the connection so SendToUser reaches it.
func (r *Registry) Identify(connID, userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.conns[connID]
	if !ok || userID == "" {
		return false
	}
	if e.user == userID {
		return true
	}
	r.unindexUserLocked(connID, e.user)
	e.user = userID
	set, ok := r.users[userID]
	if !ok {
		set = make(map[string]struct{})
		r.users[userID] = set
	}
	set[connID] = struct{}{}
	return true
}

// UserOf returns the user bound to connID.
func (r *Registry) UserOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[connID]
	if !ok || e.user == "" {
		return "", false
	}
	return e.user, true
}

// Online reports whether userID has at least one identified connection.
func (r *Registry) Online(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}

// Join adds connID to roomID. It is idempotent and returns false only for
// unknown connections.
func (r *Registry) Join(connID, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.conns[connID]
	if !ok || roomID == "" {
		return false
	}
	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[roomID] = members
	}
	members[connID] = struct{}{}
	e.rooms[roomID] = struct{}{}
	return true
}

// Leave removes connID from roomID. Unknown connections and rooms are a
// no-op.
func (r *Registry) Leave(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.conns[connID]
	if !ok {
		return
	}
	delete(e.rooms, roomID)
	r.dropMemberLocked(roomID, connID)
}

// LeaveAll removes connID from every room and returns the rooms it left,
// sorted. Unknown connections return nil.
func (r *Registry) LeaveAll(connID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.conns[connID]
	if !ok {
		return nil
	}
	return r.leaveAllLocked(connID, e)
}

// InRoom reports whether connID has joined roomID.
func (r *Registry) InRoom(connID, roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[roomID][connID]
	return ok
}

// RoomsOf returns the rooms connID has joined, sorted.
func (r *Registry) RoomsOf(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[connID]
	if !ok {
		return nil
	}
	return sortedKeys(e.rooms)
}

// Members returns the connection ids in roomID, sorted.
func (r *Registry) Members(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.rooms[roomID])
}

// UsersIn returns the distinct identified users present in roomID, sorted.
func (r *Registry) UsersIn(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	for connID := range r.rooms[roomID] {
		if e := r.conns[connID]; e != nil && e.user != "" {
			seen[e.user] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// Stats counts connections, non-empty rooms and identified users.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{Connections: len(r.conns), Rooms: len(r.rooms), Users: len(r.users)}
}

// Broadcast queues event to every connection in roomID except exclude
// (pass "" to include everyone). It returns how many connections accepted
// the frame.
func (r *Registry) Broadcast(roomID, event string, payload any, exclude string) int {
	r.mu.RLock()
	targets := make([]*Conn, 0, len(r.rooms[roomID]))
	for connID := range r.rooms[roomID] {
		if connID == exclude {
			continue
		}
		if e := r.conns[connID]; e != nil {
			targets = append(targets, e.conn)
		}
	}
	r.mu.RUnlock()

	return r.deliver(targets, event, payload)
}

// SendToUser queues event to every connection identified as userID. An
// offline user gets nothing and the call returns 0.
func (r *Registry) SendToUser(userID, event string, payload any) int {
	r.mu.RLock()
	targets := make([]*Conn, 0, len(r.users[userID]))
	for connID := range r.users[userID] {
		if e := r.conns[connID]; e != nil {
			targets = append(targets, e.conn)
		}
	}
	r.mu.RUnlock()

	return r.deliver(targets, event, payload)
}

// SendToConn queues event to one connection.
func (r *Registry) SendToConn(connID, event string, payload any) bool {
	r.mu.RLock()
	e := r.conns[connID]
	r.mu.RUnlock()
	if e == nil {
		return false
	}
	return r.deliver([]*Conn{e.conn}, event, payload) == 1
}

// Close closes every connection queue and empties the registry.
func (r *Registry) Close() {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[string]*entry)
	r.rooms = make(map[string]map[string]struct{})
	r.users = make(map[string]map[string]struct{})
	r.mu.Unlock()

	for _, e := range conns {
		e.conn.close()
	}
}

func (r *Registry) deliver(targets []*Conn, event string, payload any) int {
	if len(targets) == 0 {
		return 0
	}
	msg, err := json.Marshal(Frame{Event: event, Data: payload})
	if err != nil {
		r.log.Error("encode realtime frame", zap.String("event", event), zap.Error(err))
		return 0
	}

	n := 0
	for _, c := range targets {
		if c.enqueue(msg) {
			n++
			continue
		}
		r.log.Debug("realtime frame dropped",
			zap.String("conn_id", c.id),
			zap.String("event", event))
		if r.onDrop != nil {
			r.onDrop(c.id, event)
		}
	}
	return n
}

func (r *Registry) leaveAllLocked(connID string, e *entry) []string {
	left := sortedKeys(e.rooms)
	for _, roomID := range left {
		r.dropMemberLocked(roomID, connID)
	}
	e.rooms = make(map[string]struct{})
	return left
}

func (r *Registry) dropMemberLocked(roomID, connID string) {
	members, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
}

func (r *Registry) unindexUserLocked(connID, userID string) {
	if userID == "" {
		return
	}
	set := r.users[userID]
	delete(set, connID)
	if len(set) == 0 {
		delete(r.users, userID)
	}
}

func sortedKeys(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
