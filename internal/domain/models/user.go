// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is an account that can own projects and collaborate on others.
//
// NOTE:
//   - CollaborationCode is the short public handle other users type to
//     request access to this user's projects. It is unique across users and
//     never changes after registration.
//   - PasswordHash is never rendered to JSON.
type User struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Username          string             `bson:"username" json:"username"`
	UsernameCI        string             `bson:"username_ci" json:"-"` // lowercase, diacritics-stripped
	PasswordHash      string             `bson:"password_hash" json:"-"`
	CollaborationCode string             `bson:"collaboration_code" json:"collaborationCode"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// PublicUser is the subset of a User returned by the auth endpoints.
type PublicUser struct {
	ID                string `json:"_id"`
	Username          string `json:"username"`
	CollaborationCode string `json:"collaborationCode"`
}

// Public returns the API view of u.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:                u.ID.Hex(),
		Username:          u.Username,
		CollaborationCode: u.CollaborationCode,
	}
}
