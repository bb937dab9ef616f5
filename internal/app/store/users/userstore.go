// internal/app/store/users/userstore.go
package userstore

import (
	"context"
	"crypto/rand"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/coderoom/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection holds user accounts.
const Collection = "users"

// Unique index names. Create inspects duplicate-key errors for
// IndexCollaborationCode to decide whether to retry with a new code.
const (
	IndexUsernameCI        = "uniq_users_username_ci"
	IndexCollaborationCode = "uniq_users_collaboration_code"
)

// CodeLength is the length of a collaboration code.
const CodeLength = 8

// codeAlphabet is 32 symbols with 0/O and 1/I removed.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeAttempts = 5

var (
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateUsername is returned when the username is taken, compared
	// case-insensitively.
	ErrDuplicateUsername = errors.New("a user with this username already exists")
	// ErrCodeExhausted means every generated collaboration code collided.
	ErrCodeExhausted = errors.New("could not allocate a unique collaboration code")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

// NewCollaborationCode returns a random code from the code alphabet.
func NewCollaborationCode() (string, error) {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}

// NormalizeCode canonicalizes user-typed codes.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Create inserts a user with a fresh collaboration code. username must
// already be validated; passwordHash is a bcrypt hash.
func (s *Store) Create(ctx context.Context, username, passwordHash string) (models.User, error) {
	now := time.Now().UTC()
	username = strings.TrimSpace(username)
	u := models.User{
		Username:     username,
		UsernameCI:   text.Fold(username),
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := NewCollaborationCode()
		if err != nil {
			return models.User{}, err
		}
		u.ID = primitive.NewObjectID()
		u.CollaborationCode = code

		_, err = s.c.InsertOne(ctx, u)
		if err == nil {
			return u, nil
		}
		if !wafflemongo.IsDup(err) {
			return models.User{}, err
		}
		if !strings.Contains(err.Error(), IndexCollaborationCode) {
			return models.User{}, ErrDuplicateUsername
		}
	}
	return models.User{}, ErrCodeExhausted
}

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// GetByUsername looks up a user by case-insensitive username.
func (s *Store) GetByUsername(ctx context.Context, username string) (models.User, error) {
	return s.findOne(ctx, bson.M{"username_ci": text.Fold(strings.TrimSpace(username))})
}

// GetByCollaborationCode looks up the owner of a collaboration code.
func (s *Store) GetByCollaborationCode(ctx context.Context, code string) (models.User, error) {
	code = NormalizeCode(code)
	if code == "" {
		return models.User{}, ErrNotFound
	}
	return s.findOne(ctx, bson.M{"collaboration_code": code})
}

// EnsureIndexes creates the unique indexes Create relies on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateMany(ctx, Indexes())
	return err
}

// Indexes returns the index models for the users collection.
func Indexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username_ci", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(IndexUsernameCI),
		},
		{
			Keys:    bson.D{{Key: "collaboration_code", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(IndexCollaborationCode),
		},
	}
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	return u, nil
}
