// internal/app/collab/router.go
package collab

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dalemusser/coderoom/internal/app/system/metrics"
	"github.com/dalemusser/coderoom/internal/app/system/realtime"
	"github.com/dalemusser/coderoom/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// RouterConfig wires a Router.
type RouterConfig struct {
	Registry *realtime.Registry
	Workflow *Workflow
	Video    *VideoCoordinator

	// AllowAnonymous lets connections without a session act as the userId
	// their payloads claim. The first joinRoom identifies the connection.
	AllowAnonymous bool

	Metrics *metrics.Metrics
	Log     *zap.Logger
	Now     func() time.Time
}

type handler func(ctx context.Context, connID string, data json.RawMessage) error

// Router dispatches inbound realtime events. It never reports errors to the
// transport: malformed or unauthorized events are logged and dropped.
type Router struct {
	reg            *realtime.Registry
	workflow       *Workflow
	video          *VideoCoordinator
	allowAnonymous bool
	metrics        *metrics.Metrics
	log            *zap.Logger
	now            func() time.Time
	handlers       map[string]handler
}

func NewRouter(cfg RouterConfig) *Router {
	rt := &Router{
		reg:            cfg.Registry,
		workflow:       cfg.Workflow,
		video:          cfg.Video,
		allowAnonymous: cfg.AllowAnonymous,
		metrics:        cfg.Metrics,
		log:            cfg.Log,
		now:            cfg.Now,
	}
	if rt.log == nil {
		rt.log = zap.NewNop()
	}
	if rt.now == nil {
		rt.now = time.Now
	}
	rt.handlers = map[string]handler{
		EventJoinRoom:              rt.joinRoom,
		EventLeaveRoom:             rt.leaveRoom,
		EventCodeChange:            rt.codeChange,
		EventCursorMove:            rt.cursorMove,
		EventLanguageChange:        rt.languageChange,
		EventTitleChange:           rt.titleChange,
		EventChatMessage:           rt.chatMessage,
		EventCollaborationRequest:  rt.collaborationRequest,
		EventCollaborationResponse: rt.collaborationResponse,
		EventOffer:                 rt.signal(EventOffer),
		EventAnswer:                rt.signal(EventAnswer),
		EventIceCandidate:          rt.signal(EventIceCandidate),
		EventStartVideoChat:        rt.videoOp(EventStartVideoChat, rt.video.Start),
		EventJoinVideoChat:         rt.videoOp(EventJoinVideoChat, rt.video.Join),
		EventLeaveVideoChat:        rt.videoOp(EventLeaveVideoChat, rt.video.Leave),
		EventEndVideoChat:          rt.videoOp(EventEndVideoChat, rt.video.End),
	}
	return rt
}

// Dispatch handles one inbound event to completion.
func (rt *Router) Dispatch(ctx context.Context, connID, event string, data json.RawMessage) {
	h, ok := rt.handlers[event]
	if !ok {
		rt.metrics.Event("unknown", "dropped")
		rt.log.Debug("unknown realtime event", zap.String("conn_id", connID), zap.String("event", event))
		return
	}

	err := h(ctx, connID, data)
	if err == nil {
		rt.metrics.Event(event, "handled")
		return
	}
	rt.metrics.Event(event, Kind(err))

	fields := []zap.Field{zap.String("conn_id", connID), zap.String("event", event), zap.Error(err)}
	switch {
	case errors.Is(err, ErrInvalidInput):
		rt.log.Debug("realtime event dropped", fields...)
	case errors.Is(err, ErrUpstream):
		rt.log.Warn("realtime event failed", fields...)
	default:
		rt.log.Info("realtime event refused", fields...)
	}
}

// Disconnect tells every room the connection was in that its user left,
// then removes the memberships. Video participation is left to the
// reconciler.
func (rt *Router) Disconnect(connID string) {
	user, ok := rt.reg.UserOf(connID)
	if !ok {
		user = connID
	}
	for _, room := range rt.reg.LeaveAll(connID) {
		rt.reg.Broadcast(room, EventUserLeft, Presence{RoomID: room, UserID: user}, connID)
	}
}

func decode(op string, data json.RawMessage, v any) error {
	if len(data) == 0 {
		return invalid(op, "", "", "missing payload")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return invalid(op, "", "", "malformed payload")
	}
	return nil
}

// actor resolves who is acting on connID. An identified connection acts as
// its user and a different claimed id is refused.
func (rt *Router) actor(op, connID, claimed, roomID string) (string, error) {
	claimed = strings.TrimSpace(claimed)
	if u, ok := rt.reg.UserOf(connID); ok {
		if claimed != "" && claimed != u {
			return "", fail(op, roomID, claimed, ErrForbidden)
		}
		return u, nil
	}
	if !rt.allowAnonymous {
		return "", fail(op, roomID, claimed, ErrForbidden)
	}
	if claimed == "" {
		return "", invalid(op, roomID, "", "userId is required")
	}
	return claimed, nil
}

// canonicalRoom maps a client room id to the registry key joinRoom uses.
// Project ids are hex and compare case-insensitively; other ids pass
// through trimmed.
func canonicalRoom(id string) string {
	id = strings.TrimSpace(id)
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return RoomID(oid)
	}
	return id
}

// member checks that connID joined roomID and returns the canonical room.
func (rt *Router) member(op, connID, roomID string) (string, error) {
	room := canonicalRoom(roomID)
	if room == "" {
		return "", invalid(op, "", "", "roomId is required")
	}
	if !rt.reg.InRoom(connID, room) {
		return "", fail(op, room, "", ErrForbidden)
	}
	return room, nil
}

// sender names the connection in relayed payloads.
func (rt *Router) sender(connID string) string {
	if u, ok := rt.reg.UserOf(connID); ok {
		return u
	}
	return connID
}

func (rt *Router) joinRoom(ctx context.Context, connID string, data json.RawMessage) error {
	const op = EventJoinRoom
	var m roomMsg
	if err := decode(op, data, &m); err != nil {
		return err
	}
	roomID := strings.TrimSpace(m.RoomID)
	if roomID == "" {
		return invalid(op, "", m.UserID, "roomId is required")
	}
	actor, err := rt.actor(op, connID, m.UserID, roomID)
	if err != nil {
		return err
	}

	// Joining grants collaborator access without an invitation.
	p, added, err := rt.workflow.Admit(ctx, actor, roomID)
	if err != nil {
		return err
	}
	room := RoomID(p.ID)
	if !rt.reg.Join(connID, room) {
		return nil
	}
	if _, ok := rt.reg.UserOf(connID); !ok {
		rt.reg.Identify(connID, actor)
	}

	rt.reg.Broadcast(room, EventUserJoined, Presence{RoomID: room, UserID: actor}, "")
	if added {
		rt.reg.Broadcast(room, EventCollaboratorUpdate, CollaboratorUpdate{
			RoomID:        room,
			Collaborators: hexIDs(p.Collaborators),
		}, "")
	}
	return nil
}

func (rt *Router) leaveRoom(_ context.Context, connID string, data json.RawMessage) error {
	const op = EventLeaveRoom
	var m roomMsg
	if err := decode(op, data, &m); err != nil {
		return err
	}
	roomID := canonicalRoom(m.RoomID)
	if !rt.reg.InRoom(connID, roomID) {
		return nil
	}
	rt.reg.Leave(connID, roomID)
	rt.reg.Broadcast(roomID, EventUserLeft, Presence{RoomID: roomID, UserID: rt.sender(connID)}, "")
	return nil
}

func (rt *Router) codeChange(_ context.Context, connID string, data json.RawMessage) error {
	const op = EventCodeChange
	var m codeChangeMsg
	if err := decode(op, data, &m); err != nil {
		return err
	}
	room, err := rt.member(op, connID, m.RoomID)
	if err != nil {
		return err
	}
	rt.reg.Broadcast(room, EventCodeUpdate, CodeUpdate{RoomID: room, Code: m.Code}, connID)
	return nil
}

func (rt *Router) cursorMove(_ context.Context, connID string, data json.RawMessage) error {
	const op = EventCursorMove
	var m cursorMoveMsg
	if err := decode(op, data, &m); err != nil {
		return err
	}
	room, err := rt.member(op, connID, m.RoomID)
	if err != nil {
		return err
	}
	actor, err := rt.actor(op, connID, m.UserID, room)
	if err != nil {
		return err
	}
	rt.reg.Broadcast(room, EventCursorUpdate, CursorUpdate{RoomID: room, UserID: actor, Position: m.Position}, connID)
	return nil
}

func (rt *Router) languageChange(_ context.Context, connID string, data json.RawMessage) error {
	const op = EventLanguageChange
	var m languageChangeMsg
	if err := decode(op, data, &m); err != nil {
		return err
	}
	room, err := rt.member(op, connID, m.RoomID)
	if err != nil {
		return err
	}
	lang := strings.TrimSpace(m.Language)
	if lang == "" || utf8.RuneCountInString(lang) > MaxLanguageRunes {
		return invalid(op, room, "", "bad language")
	}
	rt.reg.Broadcast(room, EventLanguageUpdate, LanguageUpdate{RoomID: room, Language: lang}, connID)
	return nil
}

func (rt *Router) titleChange(_ context.Context, connID string, data json.RawMessage) error {
	const op = EventTitleChange
	var m titleChangeMsg
	if err := decode(op, data, &m); err != nil {
		return err
	}
	room, err := rt.member(op, connID, m.RoomID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(m.Title) == "" || utf8.RuneCountInString(m.Title) > MaxTitleRunes {
		return invalid(op, room, "", "bad title")
	}
	rt.reg.Broadcast(room, EventTitleUpdate, TitleUpdate{RoomID: room, Title: m.Title}, connID)
	return nil
}

func (rt *Router) chatMessage(_ context.Context, connID string, data json.RawMessage) error {
	const op = EventChatMessage
	var m chatMsg
	if err := decode(op, data, &m); err != nil {
		return err
	}
	room, err := rt.member(op, connID, m.RoomID)
	if err != nil {
		return err
	}
	// Clients render chat as text, so the message is relayed as sent.
	if strings.TrimSpace(m.Message) == "" {
		return invalid(op, room, "", "empty message")
	}
	if utf8.RuneCountInString(m.Message) > MaxChatRunes {
		return invalid(op, room, "", "message too long")
	}
	rt.reg.Broadcast(room, EventChatMessage, ChatMessage{
		RoomID:  room,
		UserID:  rt.sender(connID),
		Message: m.Message,
		SentAt:  rt.now().UTC(),
	}, "")
	return nil
}

func (rt *Router) collaborationRequest(ctx context.Context, connID string, data json.RawMessage) error {
	const op = EventCollaborationRequest
	var m collabRequestMsg
	if err := decode(op, data, &m); err != nil {
		return err
	}
	actor, err := rt.actor(op, connID, m.RequestingUserID, m.CodeID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(m.CodeID) == "" {
		return invalid(op, "", actor, "codeId is required")
	}
	_, err = rt.workflow.RequestByUserID(ctx, actor, m.TargetUserID, m.CodeID)
	return err
}

func (rt *Router) collaborationResponse(ctx context.Context, connID string, data json.RawMessage) error {
	const op = EventCollaborationResponse
	var m collabResponseMsg
	if err := decode(op, data, &m); err != nil {
		return err
	}
	owner, ok := rt.reg.UserOf(connID)
	if !ok {
		return fail(op, m.CodeID, m.UserID, ErrForbidden)
	}
	var err error
	if m.Accepted {
		_, err = rt.workflow.Accept(ctx, owner, m.CodeID, m.UserID)
	} else {
		_, err = rt.workflow.Decline(ctx, owner, m.CodeID, m.UserID)
	}
	return err
}

func (rt *Router) signal(event string) handler {
	return func(_ context.Context, connID string, data json.RawMessage) error {
		var m signalMsg
		if err := decode(event, data, &m); err != nil {
			return err
		}
		room, err := rt.member(event, connID, m.RoomID)
		if err != nil {
			return err
		}
		payload := m.Payload
		if len(payload) == 0 {
			switch event {
			case EventOffer:
				payload = m.Offer
			case EventAnswer:
				payload = m.Answer
			case EventIceCandidate:
				payload = m.Candidate
			}
		}
		if len(payload) == 0 {
			return invalid(event, room, "", "missing signaling payload")
		}
		rt.video.Relay(connID, rt.sender(connID), room, event, payload)
		return nil
	}
}

func (rt *Router) videoOp(event string, fn func(ctx context.Context, actorID, projectID string) (models.Project, error)) handler {
	return func(ctx context.Context, connID string, data json.RawMessage) error {
		var m videoMsg
		if err := decode(event, data, &m); err != nil {
			return err
		}
		actor, err := rt.actor(event, connID, m.UserID, m.CodeID)
		if err != nil {
			return err
		}
		_, err = fn(ctx, actor, m.CodeID)
		return err
	}
}
