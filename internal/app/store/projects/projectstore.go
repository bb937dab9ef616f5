// internal/app/store/projects/projectstore.go
package projectstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/coderoom/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection holds project documents.
const Collection = "projects"

// ErrNotFound is returned when no project matches, including for ids that
// are not valid ObjectID hex.
var ErrNotFound = errors.New("project not found")

// ParseID parses a hex project id. Malformed ids are ErrNotFound.
func ParseID(hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(hex))
	if err != nil {
		return primitive.NilObjectID, ErrNotFound
	}
	return id, nil
}

// ContentUpdate is an explicit save from the editor. Nil fields are left
// alone.
type ContentUpdate struct {
	Title    *string
	Content  *string
	Language *string
}

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

// Create inserts a new project owned by owner with empty membership lists.
func (s *Store) Create(ctx context.Context, owner primitive.ObjectID, title, content, language string) (models.Project, error) {
	p := newProject(owner, title, content, language, time.Now().UTC())
	if _, err := s.c.InsertOne(ctx, p); err != nil {
		return models.Project{}, err
	}
	return p, nil
}

// Get loads a project by id.
func (s *Store) Get(ctx context.Context, id primitive.ObjectID) (models.Project, error) {
	var p models.Project
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Project{}, ErrNotFound
		}
		return models.Project{}, err
	}
	normalize(&p)
	return p, nil
}

// Replace writes the whole document in one operation and stamps UpdatedAt.
// The owner and creation time of the stored document are never changed.
func (s *Store) Replace(ctx context.Context, p *models.Project) error {
	p.UpdatedAt = time.Now().UTC()
	normalize(p)
	res, err := s.c.ReplaceOne(ctx, bson.M{"_id": p.ID, "user": p.Owner}, p)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByOwner returns the owner's projects, most recently updated first.
func (s *Store) ListByOwner(ctx context.Context, owner primitive.ObjectID) ([]models.Project, error) {
	return s.find(ctx, bson.M{"user": owner})
}

// ListForUser returns projects the user owns or collaborates on, most
// recently updated first.
func (s *Store) ListForUser(ctx context.Context, user primitive.ObjectID) ([]models.Project, error) {
	return s.find(ctx, bson.M{"$or": []bson.M{
		{"user": user},
		{"collaborators": user},
	}})
}

// LatestByOwner returns the owner's most recently updated project.
func (s *Store) LatestByOwner(ctx context.Context, owner primitive.ObjectID) (models.Project, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "updatedAt", Value: -1}, {Key: "_id", Value: -1}})
	var p models.Project
	if err := s.c.FindOne(ctx, bson.M{"user": owner}, opts).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Project{}, ErrNotFound
		}
		return models.Project{}, err
	}
	normalize(&p)
	return p, nil
}

// ListVideoActive returns every project with a running video session.
func (s *Store) ListVideoActive(ctx context.Context) ([]models.Project, error) {
	return s.find(ctx, bson.M{"videoSessionActive": true})
}

// SaveContent applies an explicit save and returns the updated project.
func (s *Store) SaveContent(ctx context.Context, id primitive.ObjectID, upd ContentUpdate) (models.Project, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if upd.Title != nil {
		set["title"] = *upd.Title
	}
	if upd.Content != nil {
		set["content"] = *upd.Content
	}
	if upd.Language != nil {
		set["language"] = *upd.Language
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var p models.Project
	if err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Project{}, ErrNotFound
		}
		return models.Project{}, err
	}
	normalize(&p)
	return p, nil
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]models.Project, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Project{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	for i := range out {
		normalize(&out[i])
	}
	return out, nil
}

func newProject(owner primitive.ObjectID, title, content, language string, now time.Time) models.Project {
	title = strings.TrimSpace(title)
	if title == "" {
		title = models.DefaultProjectTitle
	}
	language = strings.TrimSpace(language)
	if language == "" {
		language = models.DefaultLanguage
	}
	return models.Project{
		ID:                       primitive.NewObjectID(),
		Owner:                    owner,
		Title:                    title,
		Content:                  content,
		Language:                 language,
		Collaborators:            []primitive.ObjectID{},
		PendingRequests:          []primitive.ObjectID{},
		VideoSessionParticipants: []primitive.ObjectID{},
		CreatedAt:                now,
		UpdatedAt:                now,
	}
}

// normalize turns missing arrays into empty ones so JSON renders [] and
// the active flag always matches the participant list.
func normalize(p *models.Project) {
	if p.Collaborators == nil {
		p.Collaborators = []primitive.ObjectID{}
	}
	if p.PendingRequests == nil {
		p.PendingRequests = []primitive.ObjectID{}
	}
	if p.VideoSessionParticipants == nil {
		p.VideoSessionParticipants = []primitive.ObjectID{}
	}
	p.SyncVideoState()
}
