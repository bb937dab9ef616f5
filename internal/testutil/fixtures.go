// internal/testutil/fixtures.go
package testutil

import (
	"context"
	"testing"

	projectstore "github.com/dalemusser/coderoom/internal/app/store/projects"
	userstore "github.com/dalemusser/coderoom/internal/app/store/users"
	"github.com/dalemusser/coderoom/internal/app/system/authutil"
	"github.com/dalemusser/coderoom/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
)

// DefaultPassword is the password of every fixture user.
const DefaultPassword = "correct-horse-battery"

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser registers username with DefaultPassword.
func (f *Fixtures) CreateUser(ctx context.Context, username string) models.User {
	f.t.Helper()

	hash, err := authutil.HashPassword(DefaultPassword)
	if err != nil {
		f.t.Fatalf("failed to hash password: %v", err)
	}
	u, err := userstore.New(f.db).Create(ctx, username, hash)
	if err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// CreateProject creates a project owned by owner.
func (f *Fixtures) CreateProject(ctx context.Context, owner models.User, title, content, language string) models.Project {
	f.t.Helper()

	p, err := projectstore.New(f.db).Create(ctx, owner.ID, title, content, language)
	if err != nil {
		f.t.Fatalf("failed to create test project: %v", err)
	}
	return p
}

// AddCollaborator grants user collaborator access to p and returns the
// stored project.
func (f *Fixtures) AddCollaborator(ctx context.Context, p models.Project, user models.User) models.Project {
	f.t.Helper()

	p.AddCollaborator(user.ID)
	if err := projectstore.New(f.db).Replace(ctx, &p); err != nil {
		f.t.Fatalf("failed to add collaborator: %v", err)
	}
	return p
}
