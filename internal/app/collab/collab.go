// internal/app/collab/collab.go
// Package collab is the realtime collaboration core: the invitation
// workflow, the video session coordinator and the router that turns inbound
// realtime events into room broadcasts and state transitions.
//
// Every transition reads the project, computes the change on a copy and
// writes it back with one full replace. There is no in-process lock, so two
// transitions racing on the same project resolve last-write-wins. Nothing is
// broadcast unless the write succeeded.
package collab

import (
	"context"
	"errors"
	"strings"

	projectstore "github.com/dalemusser/coderoom/internal/app/store/projects"
	"github.com/dalemusser/coderoom/internal/app/system/auditlog"
	"github.com/dalemusser/coderoom/internal/app/system/metrics"
	"github.com/dalemusser/coderoom/internal/app/system/timeouts"
	"github.com/dalemusser/coderoom/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Person is the part of a user account the workflow needs.
type Person struct {
	ID       primitive.ObjectID
	Username string
}

// Documents is the project persistence used by the core. Get, Replace and
// LatestByOwner report a missing project with projectstore.ErrNotFound.
type Documents interface {
	Get(ctx context.Context, id primitive.ObjectID) (models.Project, error)
	Replace(ctx context.Context, p *models.Project) error
	ListByOwner(ctx context.Context, owner primitive.ObjectID) ([]models.Project, error)
	LatestByOwner(ctx context.Context, owner primitive.ObjectID) (models.Project, error)
	ListVideoActive(ctx context.Context) ([]models.Project, error)
}

// Directory resolves users. Unknown users are ErrNotFound.
type Directory interface {
	PersonByID(ctx context.Context, id primitive.ObjectID) (Person, error)
	PersonByCode(ctx context.Context, code string) (Person, error)
}

// Notifier delivers realtime frames. *realtime.Registry implements it.
type Notifier interface {
	Broadcast(roomID, event string, payload any, exclude string) int
	SendToUser(userID, event string, payload any) int
}

// Deps are shared by the workflow, the video coordinator and the router.
// Audit and Metrics may be nil.
type Deps struct {
	Docs    Documents
	People  Directory
	Notify  Notifier
	Audit   *auditlog.Logger
	Metrics *metrics.Metrics
	Log     *zap.Logger
}

type core struct {
	Deps
}

func newCore(d Deps) core {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return core{Deps: d}
}

// RoomID is the realtime room of a project.
func RoomID(projectID primitive.ObjectID) string { return projectID.Hex() }

func (c core) record(op string, err error) {
	c.Metrics.Transition(op, Kind(err))
	if errors.Is(err, ErrUpstream) {
		c.Log.Warn("collab transition failed", zap.String("op", op), zap.Error(err))
	}
}

func (c core) parseUser(op, projectID, raw string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(raw))
	if err != nil {
		return primitive.NilObjectID, invalid(op, projectID, raw, "malformed user id")
	}
	return id, nil
}

// parseProject treats a malformed project id as a missing project.
func (c core) parseProject(op, raw, userID string) (primitive.ObjectID, error) {
	id, err := projectstore.ParseID(raw)
	if err != nil {
		return primitive.NilObjectID, fail(op, raw, userID, ErrNotFound)
	}
	return id, nil
}

func (c core) load(ctx context.Context, op string, id primitive.ObjectID, userID string) (models.Project, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	p, err := c.Docs.Get(ctx, id)
	switch {
	case errors.Is(err, projectstore.ErrNotFound):
		return models.Project{}, fail(op, id.Hex(), userID, ErrNotFound)
	case err != nil:
		return models.Project{}, upstream(op, id.Hex(), userID, err)
	}
	return p, nil
}

func (c core) save(ctx context.Context, op string, p *models.Project, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	p.SyncVideoState()
	err := c.Docs.Replace(ctx, p)
	switch {
	case errors.Is(err, projectstore.ErrNotFound):
		return fail(op, p.ID.Hex(), userID, ErrNotFound)
	case err != nil:
		return upstream(op, p.ID.Hex(), userID, err)
	}
	return nil
}

func (c core) person(ctx context.Context, op, projectID, userID string, lookup func(context.Context) (Person, error)) (Person, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	who, err := lookup(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		return Person{}, fail(op, projectID, userID, ErrNotFound)
	case err != nil:
		return Person{}, upstream(op, projectID, userID, err)
	}
	return who, nil
}

func hexIDs(ids []primitive.ObjectID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Hex()
	}
	return out
}
