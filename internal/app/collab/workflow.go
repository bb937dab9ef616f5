// internal/app/collab/workflow.go
package collab

import (
	"context"
	"errors"
	"strings"

	projectstore "github.com/dalemusser/coderoom/internal/app/store/projects"
	"github.com/dalemusser/coderoom/internal/app/system/timeouts"
	"github.com/dalemusser/coderoom/internal/domain/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Invitation describes a collaboration request. ID is empty and
// AlreadyMember is true when the requester already had access.
type Invitation struct {
	ID            string `json:"id,omitempty"`
	ProjectID     string `json:"projectId"`
	RequesterID   string `json:"requesterId"`
	TargetID      string `json:"targetId"`
	AlreadyMember bool   `json:"alreadyMember,omitempty"`
}

// Workflow moves a (project, user) pair through
// none -> pending -> accepted|declined. The pending state lives only in the
// project's pendingRequests.
type Workflow struct {
	core
}

func NewWorkflow(d Deps) *Workflow {
	return &Workflow{core: newCore(d)}
}

// RequestByCode asks the owner of code for access to projectID, or to the
// owner's most recently updated project when projectID is empty.
func (w *Workflow) RequestByCode(ctx context.Context, requesterID, code, projectID string) (inv Invitation, err error) {
	const op = "request"
	defer func() { w.record(op, err) }()

	requester, err := w.parseUser(op, projectID, requesterID)
	if err != nil {
		return Invitation{}, err
	}
	if strings.TrimSpace(code) == "" {
		return Invitation{}, invalid(op, projectID, requesterID, "collaboration code is required")
	}
	target, err := w.person(ctx, op, projectID, requesterID, func(ctx context.Context) (Person, error) {
		return w.People.PersonByCode(ctx, code)
	})
	if err != nil {
		return Invitation{}, err
	}
	return w.request(ctx, op, requester, target, projectID)
}

// RequestByUserID is RequestByCode keyed by the owner's user id.
func (w *Workflow) RequestByUserID(ctx context.Context, requesterID, targetUserID, projectID string) (inv Invitation, err error) {
	const op = "request"
	defer func() { w.record(op, err) }()

	requester, err := w.parseUser(op, projectID, requesterID)
	if err != nil {
		return Invitation{}, err
	}
	targetOID, err := w.parseUser(op, projectID, targetUserID)
	if err != nil {
		return Invitation{}, err
	}
	target, err := w.person(ctx, op, projectID, requesterID, func(ctx context.Context) (Person, error) {
		return w.People.PersonByID(ctx, targetOID)
	})
	if err != nil {
		return Invitation{}, err
	}
	return w.request(ctx, op, requester, target, projectID)
}

func (w *Workflow) request(ctx context.Context, op string, requester primitive.ObjectID, target Person, projectID string) (Invitation, error) {
	rid := requester.Hex()
	if target.ID == requester {
		return Invitation{}, fail(op, projectID, rid, ErrInvalidSelfReference)
	}

	who, err := w.person(ctx, op, projectID, rid, func(ctx context.Context) (Person, error) {
		return w.People.PersonByID(ctx, requester)
	})
	if err != nil {
		return Invitation{}, err
	}

	p, err := w.targetProject(ctx, op, target.ID, projectID, rid)
	if err != nil {
		return Invitation{}, err
	}

	inv := Invitation{
		ProjectID:   p.ID.Hex(),
		RequesterID: rid,
		TargetID:    target.ID.Hex(),
	}
	if p.IsMember(requester) {
		inv.AlreadyMember = true
		return inv, nil
	}

	next := p.Clone()
	if next.AddPending(requester) {
		if err := w.save(ctx, op, &next, rid); err != nil {
			return Invitation{}, err
		}
	}

	inv.ID = uuid.NewString()
	w.Notify.SendToUser(inv.TargetID, EventCollaborationRequest, CollaborationRequest{
		ID:           inv.ID,
		RequesterID:  rid,
		Requester:    who.Username,
		CodeID:       inv.ProjectID,
		ProjectTitle: next.Title,
	})
	w.Audit.CollabRequested(ctx, next.ID, requester, target.ID, inv.ID)
	return inv, nil
}

// targetProject resolves the project a request addresses. It must belong to
// owner.
func (w *Workflow) targetProject(ctx context.Context, op string, owner primitive.ObjectID, projectID, userID string) (models.Project, error) {
	if strings.TrimSpace(projectID) == "" {
		lctx, cancel := context.WithTimeout(ctx, timeouts.Short())
		defer cancel()
		p, err := w.Docs.LatestByOwner(lctx, owner)
		switch {
		case errors.Is(err, projectstore.ErrNotFound):
			return models.Project{}, fail(op, "", userID, ErrNotFound)
		case err != nil:
			return models.Project{}, upstream(op, "", userID, err)
		}
		return p, nil
	}

	pid, err := w.parseProject(op, projectID, userID)
	if err != nil {
		return models.Project{}, err
	}
	p, err := w.load(ctx, op, pid, userID)
	if err != nil {
		return models.Project{}, err
	}
	if p.Owner != owner {
		return models.Project{}, fail(op, projectID, userID, ErrNotFound)
	}
	return p, nil
}

// Accept moves userID from pending to collaborators. Only the owner may
// accept, and only a pending user can be accepted.
func (w *Workflow) Accept(ctx context.Context, ownerID, projectID, userID string) (p models.Project, err error) {
	const op = "accept"
	defer func() { w.record(op, err) }()

	cur, owner, user, err := w.decision(ctx, op, ownerID, projectID, userID)
	if err != nil {
		return models.Project{}, err
	}
	if !cur.IsPending(user) {
		return models.Project{}, fail(op, projectID, userID, ErrNotFound)
	}

	next := cur.Clone()
	next.AddCollaborator(user)
	if err := w.save(ctx, op, &next, userID); err != nil {
		return models.Project{}, err
	}

	w.Notify.SendToUser(user.Hex(), EventCollaborationAccepted, next)
	w.Notify.Broadcast(RoomID(next.ID), EventCollaboratorUpdate, CollaboratorUpdate{
		RoomID:        RoomID(next.ID),
		Collaborators: hexIDs(next.Collaborators),
	}, "")
	w.Audit.CollabAccepted(ctx, next.ID, owner, user)
	return next, nil
}

// Decline drops userID's pending request. Declining a user with no pending
// request succeeds and changes nothing.
func (w *Workflow) Decline(ctx context.Context, ownerID, projectID, userID string) (p models.Project, err error) {
	const op = "decline"
	defer func() { w.record(op, err) }()

	cur, owner, user, err := w.decision(ctx, op, ownerID, projectID, userID)
	if err != nil {
		return models.Project{}, err
	}

	next := cur.Clone()
	if !next.RemovePending(user) {
		return next, nil
	}
	if err := w.save(ctx, op, &next, userID); err != nil {
		return models.Project{}, err
	}

	w.Notify.SendToUser(user.Hex(), EventCollaborationRejected, CollaborationRejected{CodeID: RoomID(next.ID)})
	w.Audit.CollabDeclined(ctx, next.ID, owner, user)
	return next, nil
}

func (w *Workflow) decision(ctx context.Context, op, ownerID, projectID, userID string) (models.Project, primitive.ObjectID, primitive.ObjectID, error) {
	var zero primitive.ObjectID
	owner, err := w.parseUser(op, projectID, ownerID)
	if err != nil {
		return models.Project{}, zero, zero, err
	}
	user, err := w.parseUser(op, projectID, userID)
	if err != nil {
		return models.Project{}, zero, zero, err
	}
	pid, err := w.parseProject(op, projectID, ownerID)
	if err != nil {
		return models.Project{}, zero, zero, err
	}
	cur, err := w.load(ctx, op, pid, ownerID)
	if err != nil {
		return models.Project{}, zero, zero, err
	}
	if !cur.IsOwner(owner) {
		return models.Project{}, zero, zero, fail(op, projectID, ownerID, ErrForbidden)
	}
	return cur, owner, user, nil
}

// Admit gives userID access to the project on joining its room. A user who
// is neither owner nor collaborator becomes a collaborator without an
// invitation, and any pending request of theirs is cleared. added reports
// whether the collaborator set changed.
func (w *Workflow) Admit(ctx context.Context, userID, projectID string) (p models.Project, added bool, err error) {
	const op = "join"
	defer func() { w.record(op, err) }()

	user, err := w.parseUser(op, projectID, userID)
	if err != nil {
		return models.Project{}, false, err
	}
	pid, err := w.parseProject(op, projectID, userID)
	if err != nil {
		return models.Project{}, false, err
	}
	cur, err := w.load(ctx, op, pid, userID)
	if err != nil {
		return models.Project{}, false, err
	}
	if cur.IsMember(user) {
		return cur, false, nil
	}

	next := cur.Clone()
	next.AddCollaborator(user)
	if err := w.save(ctx, op, &next, userID); err != nil {
		return models.Project{}, false, err
	}
	w.Audit.CollabJoined(ctx, next.ID, user)
	return next, true, nil
}
