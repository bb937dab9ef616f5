// internal/app/collab/video.go
package collab

import (
	"context"
	"encoding/json"

	"github.com/dalemusser/coderoom/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// VideoCoordinator manages the per-project video session. Membership is
// persisted on the project; the media itself flows peer to peer and only
// the signaling passes through Relay.
type VideoCoordinator struct {
	core
}

func NewVideoCoordinator(d Deps) *VideoCoordinator {
	return &VideoCoordinator{core: newCore(d)}
}

// Start opens a session with the owner as its only participant. A session
// that was already running is restarted.
func (v *VideoCoordinator) Start(ctx context.Context, actorID, projectID string) (p models.Project, err error) {
	const op = "video_start"
	defer func() { v.record(op, err) }()

	cur, actor, err := v.open(ctx, op, actorID, projectID)
	if err != nil {
		return models.Project{}, err
	}
	if !cur.IsOwner(actor) {
		return models.Project{}, fail(op, projectID, actorID, ErrForbidden)
	}

	next := cur.Clone()
	next.VideoSessionParticipants = []primitive.ObjectID{actor}
	if err := v.save(ctx, op, &next, actorID); err != nil {
		return models.Project{}, err
	}

	room := RoomID(next.ID)
	v.Notify.Broadcast(room, EventVideoChatStarted, VideoStarted{CodeID: room, Initiator: actor.Hex()}, "")
	v.Audit.VideoStarted(ctx, next.ID, actor)
	return next, nil
}

// Join adds a member to the running session.
func (v *VideoCoordinator) Join(ctx context.Context, actorID, projectID string) (p models.Project, err error) {
	const op = "video_join"
	defer func() { v.record(op, err) }()

	cur, actor, err := v.open(ctx, op, actorID, projectID)
	if err != nil {
		return models.Project{}, err
	}
	if !cur.VideoSessionActive {
		return models.Project{}, fail(op, projectID, actorID, ErrNoActiveSession)
	}
	if !cur.IsMember(actor) {
		return models.Project{}, fail(op, projectID, actorID, ErrForbidden)
	}

	next := cur.Clone()
	if next.AddParticipant(actor) {
		if err := v.save(ctx, op, &next, actorID); err != nil {
			return models.Project{}, err
		}
	}

	room := RoomID(next.ID)
	v.Notify.Broadcast(room, EventUserJoinedVideoChat, VideoParticipant{CodeID: room, UserID: actor.Hex()}, "")
	return next, nil
}

// Leave removes the actor from the session, ending it when nobody is left.
// Leaving a session one is not part of succeeds and changes nothing.
func (v *VideoCoordinator) Leave(ctx context.Context, actorID, projectID string) (p models.Project, err error) {
	const op = "video_leave"
	defer func() { v.record(op, err) }()

	cur, actor, err := v.open(ctx, op, actorID, projectID)
	if err != nil {
		return models.Project{}, err
	}

	next := cur.Clone()
	if !next.RemoveParticipant(actor) {
		return next, nil
	}
	if err := v.save(ctx, op, &next, actorID); err != nil {
		return models.Project{}, err
	}

	v.announceLeft(ctx, next, []primitive.ObjectID{actor}, &actor, "empty")
	return next, nil
}

// End stops the session for everyone. Only the owner may end it.
func (v *VideoCoordinator) End(ctx context.Context, actorID, projectID string) (p models.Project, err error) {
	const op = "video_end"
	defer func() { v.record(op, err) }()

	cur, actor, err := v.open(ctx, op, actorID, projectID)
	if err != nil {
		return models.Project{}, err
	}
	if !cur.IsOwner(actor) {
		return models.Project{}, fail(op, projectID, actorID, ErrForbidden)
	}

	next := cur.Clone()
	next.ResetVideo()
	if err := v.save(ctx, op, &next, actorID); err != nil {
		return models.Project{}, err
	}

	room := RoomID(next.ID)
	v.Notify.Broadcast(room, EventVideoChatEnded, VideoEnded{CodeID: room}, "")
	v.Audit.VideoEnded(ctx, next.ID, &actor, "ended")
	return next, nil
}

// Reconcile drops participants for whom online reports false, following the
// Leave rules. It returns the ids it removed.
func (v *VideoCoordinator) Reconcile(ctx context.Context, projectID string, online func(userID string) bool) (removed []string, err error) {
	const op = "video_reconcile"
	defer func() { v.record(op, err) }()

	pid, err := v.parseProject(op, projectID, "")
	if err != nil {
		return nil, err
	}
	cur, err := v.load(ctx, op, pid, "")
	if err != nil {
		return nil, err
	}

	next := cur.Clone()
	var gone []primitive.ObjectID
	for _, id := range cur.VideoSessionParticipants {
		if !online(id.Hex()) {
			next.RemoveParticipant(id)
			gone = append(gone, id)
		}
	}
	if len(gone) == 0 {
		return nil, nil
	}
	if err := v.save(ctx, op, &next, ""); err != nil {
		return nil, err
	}

	v.announceLeft(ctx, next, gone, nil, "reaped")
	return hexIDs(gone), nil
}

// Relay forwards an opaque signaling message from one connection to the
// rest of the room.
func (v *VideoCoordinator) Relay(connID, from, roomID, event string, payload json.RawMessage) int {
	return v.Notify.Broadcast(roomID, event, Signal{From: from, Payload: payload}, connID)
}

func (v *VideoCoordinator) open(ctx context.Context, op, actorID, projectID string) (models.Project, primitive.ObjectID, error) {
	actor, err := v.parseUser(op, projectID, actorID)
	if err != nil {
		return models.Project{}, primitive.NilObjectID, err
	}
	pid, err := v.parseProject(op, projectID, actorID)
	if err != nil {
		return models.Project{}, primitive.NilObjectID, err
	}
	cur, err := v.load(ctx, op, pid, actorID)
	if err != nil {
		return models.Project{}, primitive.NilObjectID, err
	}
	return cur, actor, nil
}

func (v *VideoCoordinator) announceLeft(ctx context.Context, p models.Project, gone []primitive.ObjectID, actor *primitive.ObjectID, reason string) {
	room := RoomID(p.ID)
	for _, id := range gone {
		v.Notify.Broadcast(room, EventUserLeftVideoChat, VideoParticipant{CodeID: room, UserID: id.Hex()}, "")
	}
	if !p.VideoSessionActive {
		v.Notify.Broadcast(room, EventVideoChatEnded, VideoEnded{CodeID: room}, "")
		v.Audit.VideoEnded(ctx, p.ID, actor, reason)
	}
}
