// internal/app/system/validators/validators.go
// Package validators creates the application's collections and attaches
// JSON-Schema validators where the server supports them.
package validators

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	auditstore "github.com/dalemusser/coderoom/internal/app/store/audit"
	projectstore "github.com/dalemusser/coderoom/internal/app/store/projects"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// EnsureAll creates the collections and attaches their validators. A server
// that rejects collMod validators is logged and skipped.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems error

	ensure := func(coll string, schema bson.M) {
		if err := ensureCollection(ctx, db, coll); err != nil {
			problems = multierr.Append(problems, fmt.Errorf("%s: %w", coll, err))
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			if commandFailed(err, unsupported) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = multierr.Append(problems, fmt.Errorf("%s: %w", coll, err))
		}
	}

	ensure("users", usersSchema())
	ensure(projectstore.Collection, projectsSchema())
	ensure(auditstore.Collection, auditSchema())

	return problems
}

/* ------------------------------ collections ------------------------------ */

// ensureCollection creates name unless it is already listed. A create that
// races another instance counts as success.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) error {
	log := zap.L().With(zap.String("collection", name))
	names, err := db.ListCollectionNames(ctx, bson.M{"name": name})
	if err == nil && len(names) > 0 {
		log.Debug("collection present")
		return nil
	}
	if err := db.CreateCollection(ctx, name); err != nil {
		if commandFailed(err, namespaceExists) {
			return nil
		}
		log.Warn("create collection failed", zap.Error(err))
		return err
	}
	log.Info("collection created")
	return nil
}

func setValidator(ctx context.Context, db *mongo.Database, name string, schema bson.M) error {
	res := db.RunCommand(ctx, bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: schema},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	})
	if err := res.Err(); err != nil {
		return err
	}
	zap.L().Info("validator attached", zap.String("collection", name))
	return nil
}

/* --------------------------- server error shapes --------------------------- */

type errShape struct {
	codes   []int32
	phrases []string
}

var (
	namespaceExists = errShape{codes: []int32{48}, phrases: []string{"already exists", "namespace exists"}}
	// Servers without collMod validators (some DocumentDB releases).
	unsupported = errShape{codes: []int32{59, 115}, phrases: []string{"no such command", "not implemented", "not supported"}}
)

// commandFailed reports whether err matches shape by server code or, for
// drivers that lose the code, by message.
func commandFailed(err error, shape errShape) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && slices.Contains(shape.codes, ce.Code) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range shape.phrases {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

/* ------------------------- JSON-Schema docs ---------------------- */

var nonBlank = bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"}

var idArray = bson.M{"bsonType": "array", "items": bson.M{"bsonType": "objectId"}}

func usersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"username", "username_ci", "password_hash", "collaboration_code"},
			"properties": bson.M{
				"username":           nonBlank,
				"username_ci":        nonBlank,
				"password_hash":      nonBlank,
				"collaboration_code": bson.M{"bsonType": "string", "minLength": 6, "maxLength": 16},
			},
		},
	}
}

// projectsSchema checks field types. The membership invariants span
// several arrays and are enforced in code.
func projectsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"user", "title", "language", "collaborators", "pendingRequests", "videoSessionActive", "videoSessionParticipants"},
			"properties": bson.M{
				"user":                     bson.M{"bsonType": "objectId"},
				"title":                    nonBlank,
				"content":                  bson.M{"bsonType": "string"},
				"language":                 nonBlank,
				"collaborators":            idArray,
				"pendingRequests":          idArray,
				"videoSessionActive":       bson.M{"bsonType": "bool"},
				"videoSessionParticipants": idArray,
			},
		},
	}
}

func auditSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"timestamp", "category", "event_type", "success"},
			"properties": bson.M{
				"timestamp":  bson.M{"bsonType": "date"},
				"category":   bson.M{"enum": bson.A{auditstore.CategoryAuth, auditstore.CategoryCollab, auditstore.CategoryVideo}},
				"event_type": nonBlank,
				"success":    bson.M{"bsonType": "bool"},
			},
		},
	}
}
