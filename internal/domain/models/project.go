// internal/domain/models/project.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultProjectTitle is used when a project is created without a title.
const DefaultProjectTitle = "Untitled Project"

// DefaultLanguage is used when a project is created without a language.
const DefaultLanguage = "javascript"

// Project is a shared code document.
//
// Collaborators and PendingRequests are sets and never overlap.
// VideoSessionParticipants is ordered by join time, has no duplicates, and
// VideoSessionActive is true exactly when it is non-empty.
type Project struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Owner    primitive.ObjectID `bson:"user" json:"user"`
	Title    string             `bson:"title" json:"title"`
	Content  string             `bson:"content" json:"content"`
	Language string             `bson:"language" json:"language"`

	Collaborators   []primitive.ObjectID `bson:"collaborators" json:"collaborators"`
	PendingRequests []primitive.ObjectID `bson:"pendingRequests" json:"pendingRequests"`

	VideoSessionActive       bool                 `bson:"videoSessionActive" json:"videoSessionActive"`
	VideoSessionParticipants []primitive.ObjectID `bson:"videoSessionParticipants" json:"videoSessionParticipants"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// IsOwner reports whether id owns the project.
func (p *Project) IsOwner(id primitive.ObjectID) bool {
	return !id.IsZero() && p.Owner == id
}

// IsCollaborator reports whether id is an accepted collaborator.
func (p *Project) IsCollaborator(id primitive.ObjectID) bool {
	return indexOf(p.Collaborators, id) >= 0
}

// IsPending reports whether id has an undecided collaboration request.
func (p *Project) IsPending(id primitive.ObjectID) bool {
	return indexOf(p.PendingRequests, id) >= 0
}

// IsMember reports whether id is the owner or a collaborator.
func (p *Project) IsMember(id primitive.ObjectID) bool {
	return p.IsOwner(id) || p.IsCollaborator(id)
}

// InVideo reports whether id is a video session participant.
func (p *Project) InVideo(id primitive.ObjectID) bool {
	return indexOf(p.VideoSessionParticipants, id) >= 0
}

// AddCollaborator makes id a collaborator and drops any pending request for
// it. It reports whether the collaborator set changed.
func (p *Project) AddCollaborator(id primitive.ObjectID) bool {
	p.PendingRequests = remove(p.PendingRequests, id)
	if p.IsCollaborator(id) {
		return false
	}
	p.Collaborators = append(p.Collaborators, id)
	return true
}

// AddPending records a collaboration request from id. Members are never
// added. It reports whether the pending set changed.
func (p *Project) AddPending(id primitive.ObjectID) bool {
	if p.IsMember(id) || p.IsPending(id) {
		return false
	}
	p.PendingRequests = append(p.PendingRequests, id)
	return true
}

// RemovePending drops the request from id, reporting whether one existed.
func (p *Project) RemovePending(id primitive.ObjectID) bool {
	before := len(p.PendingRequests)
	p.PendingRequests = remove(p.PendingRequests, id)
	return len(p.PendingRequests) != before
}

// AddParticipant appends id to the video session if absent.
func (p *Project) AddParticipant(id primitive.ObjectID) bool {
	if p.InVideo(id) {
		return false
	}
	p.VideoSessionParticipants = append(p.VideoSessionParticipants, id)
	p.SyncVideoState()
	return true
}

// RemoveParticipant removes id from the video session, reporting whether it
// was present.
func (p *Project) RemoveParticipant(id primitive.ObjectID) bool {
	before := len(p.VideoSessionParticipants)
	p.VideoSessionParticipants = remove(p.VideoSessionParticipants, id)
	p.SyncVideoState()
	return len(p.VideoSessionParticipants) != before
}

// ResetVideo ends the video session.
func (p *Project) ResetVideo() {
	p.VideoSessionParticipants = []primitive.ObjectID{}
	p.SyncVideoState()
}

// SyncVideoState derives VideoSessionActive from the participant list.
func (p *Project) SyncVideoState() {
	p.VideoSessionActive = len(p.VideoSessionParticipants) > 0
}

// Clone returns a deep copy so callers can mutate without touching p.
func (p Project) Clone() Project {
	c := p
	c.Collaborators = cloneIDs(p.Collaborators)
	c.PendingRequests = cloneIDs(p.PendingRequests)
	c.VideoSessionParticipants = cloneIDs(p.VideoSessionParticipants)
	return c
}

func indexOf(ids []primitive.ObjectID, id primitive.ObjectID) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func remove(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	if out == nil {
		out = []primitive.ObjectID{}
	}
	return out
}

func cloneIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	out := make([]primitive.ObjectID, len(ids))
	copy(out, ids)
	return out
}
