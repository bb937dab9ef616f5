// internal/app/store/users/directory.go
package userstore

import (
	"context"
	"errors"

	"github.com/dalemusser/coderoom/internal/app/collab"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Directory adapts Store to collab.Directory.
type Directory struct {
	Store *Store
}

func (d Directory) PersonByID(ctx context.Context, id primitive.ObjectID) (collab.Person, error) {
	u, err := d.Store.GetByID(ctx, id)
	return person(u.ID, u.Username, err)
}

func (d Directory) PersonByCode(ctx context.Context, code string) (collab.Person, error) {
	u, err := d.Store.GetByCollaborationCode(ctx, code)
	return person(u.ID, u.Username, err)
}

func person(id primitive.ObjectID, name string, err error) (collab.Person, error) {
	if errors.Is(err, ErrNotFound) {
		return collab.Person{}, collab.ErrNotFound
	}
	if err != nil {
		return collab.Person{}, err
	}
	return collab.Person{ID: id, Username: name}, nil
}
