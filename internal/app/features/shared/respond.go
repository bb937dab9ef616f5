// internal/app/features/shared/respond.go
// Package shared holds the JSON plumbing every REST feature uses.
package shared

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dalemusser/coderoom/internal/app/collab"
	"github.com/dalemusser/coderoom/internal/app/system/auth"
	"github.com/dalemusser/coderoom/internal/app/system/limits"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// WriteJSON writes v with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes {"error": msg}.
func Error(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"error": msg})
}

// DecodeJSON reads a bounded JSON body into v. On failure it writes a 400
// and returns false.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		Error(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// Caller returns the signed-in user and their ObjectID. RequireSignedIn
// guarantees a user, so a malformed id is a 401.
func Caller(w http.ResponseWriter, r *http.Request) (*auth.SessionUser, primitive.ObjectID, bool) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return nil, primitive.NilObjectID, false
	}
	oid, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return nil, primitive.NilObjectID, false
	}
	return u, oid, true
}

// StatusOf maps a collaboration core error to an HTTP status.
func StatusOf(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, collab.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, collab.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, collab.ErrInvalidSelfReference),
		errors.Is(err, collab.ErrInvalidInput),
		errors.Is(err, collab.ErrNoActiveSession):
		return http.StatusBadRequest
	case errors.Is(err, collab.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

var messages = map[int]string{
	http.StatusNotFound:            "not found",
	http.StatusForbidden:           "access denied",
	http.StatusBadGateway:          "storage unavailable",
	http.StatusInternalServerError: "internal error",
}

// CollabError writes the response for a core error. Client errors carry
// the sentinel text; server errors are logged and hidden.
func CollabError(w http.ResponseWriter, log *zap.Logger, err error) {
	status := StatusOf(err)
	if status >= 500 {
		log.Error("collaboration operation failed", zap.Error(err))
		Error(w, status, messages[status])
		return
	}
	msg := messages[status]
	var ce *collab.Error
	if errors.As(err, &ce) && status == http.StatusBadRequest {
		msg = ce.Err.Error()
	}
	Error(w, status, msg)
}
