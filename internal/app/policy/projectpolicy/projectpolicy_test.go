package projectpolicy_test

import (
	"testing"

	"github.com/dalemusser/coderoom/internal/app/policy/projectpolicy"
	"github.com/dalemusser/coderoom/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestAllowed(t *testing.T) {
	owner := primitive.NewObjectID()
	collaborator := primitive.NewObjectID()
	pending := primitive.NewObjectID()
	stranger := primitive.NewObjectID()

	p := models.Project{ID: primitive.NewObjectID(), Owner: owner}
	p.AddCollaborator(collaborator)
	p.AddPending(pending)

	tests := []struct {
		name string
		user primitive.ObjectID
		want map[projectpolicy.Action]bool
	}{
		{"owner", owner, map[projectpolicy.Action]bool{
			projectpolicy.View: true, projectpolicy.Edit: true, projectpolicy.Run: true, projectpolicy.Manage: true,
		}},
		{"collaborator", collaborator, map[projectpolicy.Action]bool{
			projectpolicy.View: true, projectpolicy.Edit: true, projectpolicy.Run: false, projectpolicy.Manage: false,
		}},
		{"pending", pending, map[projectpolicy.Action]bool{
			projectpolicy.View: false, projectpolicy.Edit: false, projectpolicy.Run: false, projectpolicy.Manage: false,
		}},
		{"stranger", stranger, map[projectpolicy.Action]bool{
			projectpolicy.View: false, projectpolicy.Edit: false, projectpolicy.Run: false, projectpolicy.Manage: false,
		}},
		{"zero id", primitive.NilObjectID, map[projectpolicy.Action]bool{
			projectpolicy.View: false, projectpolicy.Edit: false, projectpolicy.Run: false, projectpolicy.Manage: false,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for action, want := range tt.want {
				if got := projectpolicy.Allowed(p, tt.user, action); got != want {
					t.Errorf("Allowed(%s) = %v, want %v", action, got, want)
				}
			}
		})
	}

	if !projectpolicy.CanView(p, collaborator) || !projectpolicy.CanEdit(p, collaborator) || projectpolicy.CanManage(p, collaborator) {
		t.Error("collaborator helpers disagree with Allowed")
	}
}
