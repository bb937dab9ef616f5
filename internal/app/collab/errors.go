// internal/app/collab/errors.go
package collab

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Match them with errors.Is.
var (
	ErrNotFound             = errors.New("not found")
	ErrForbidden            = errors.New("forbidden")
	ErrInvalidSelfReference = errors.New("cannot collaborate with yourself")
	ErrInvalidInput         = errors.New("invalid input")
	ErrNoActiveSession      = errors.New("no active video session")
	ErrUpstream             = errors.New("upstream failure")
)

// Error carries the operation and the project/user it concerned. Err wraps
// one of the kinds above, and for upstream failures the cause as well.
type Error struct {
	Op        string
	ProjectID string
	UserID    string
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("collab ")
	b.WriteString(e.Op)
	if e.ProjectID != "" {
		b.WriteString(" project=")
		b.WriteString(e.ProjectID)
	}
	if e.UserID != "" {
		b.WriteString(" user=")
		b.WriteString(e.UserID)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func fail(op, projectID, userID string, kind error) error {
	return &Error{Op: op, ProjectID: projectID, UserID: userID, Err: kind}
}

func upstream(op, projectID, userID string, cause error) error {
	return &Error{Op: op, ProjectID: projectID, UserID: userID, Err: fmt.Errorf("%w: %w", ErrUpstream, cause)}
}

func invalid(op, projectID, userID, why string) error {
	return &Error{Op: op, ProjectID: projectID, UserID: userID, Err: fmt.Errorf("%w: %s", ErrInvalidInput, why)}
}

// Kind names the error kind of err for logs and metrics labels. nil is
// "ok".
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidSelfReference):
		return "invalid_self_reference"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNoActiveSession):
		return "no_active_session"
	case errors.Is(err, ErrUpstream):
		return "upstream"
	default:
		return "error"
	}
}
