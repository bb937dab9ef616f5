// internal/app/policy/projectpolicy/projectpolicy.go
// Package projectpolicy decides what a user may do with a project.
package projectpolicy

import (
	"github.com/dalemusser/coderoom/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Action is something a caller wants to do with a project.
type Action int

const (
	// View covers reading the document and its live session.
	View Action = iota
	// Edit covers saving title, content and language.
	Edit
	// Run executes the saved content.
	Run
	// Manage covers collaboration decisions, video start/end and the
	// activity log.
	Manage
)

func (a Action) String() string {
	switch a {
	case View:
		return "view"
	case Edit:
		return "edit"
	case Run:
		return "run"
	case Manage:
		return "manage"
	}
	return "unknown"
}

// Allowed reports whether userID may perform a on p. Owners may do
// everything; collaborators may view and edit. Pending requesters have no
// access.
func Allowed(p models.Project, userID primitive.ObjectID, a Action) bool {
	if userID.IsZero() {
		return false
	}
	if p.IsOwner(userID) {
		return true
	}
	switch a {
	case View, Edit:
		return p.IsCollaborator(userID)
	}
	return false
}

// CanView reports whether userID may read p.
func CanView(p models.Project, userID primitive.ObjectID) bool { return Allowed(p, userID, View) }

// CanEdit reports whether userID may save p.
func CanEdit(p models.Project, userID primitive.ObjectID) bool { return Allowed(p, userID, Edit) }

// CanManage reports whether userID owns p.
func CanManage(p models.Project, userID primitive.ObjectID) bool { return Allowed(p, userID, Manage) }
