// internal/app/system/indexes/indexes.go
// Package indexes reconciles the MongoDB indexes the application needs.
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	auditstore "github.com/dalemusser/coderoom/internal/app/store/audit"
	projectstore "github.com/dalemusser/coderoom/internal/app/store/projects"
	userstore "github.com/dalemusser/coderoom/internal/app/store/users"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each collection set is idempotent, and
every failure is collected so startup reports all problems at once.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var err error
	for _, set := range Sets() {
		if e := ensureIndexSet(ctx, db.Collection(set.Collection), set.Models); e != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", set.Collection, e))
		}
	}
	return err
}

// Set is the desired index list of one collection.
type Set struct {
	Collection string
	Models     []mongo.IndexModel
}

// Sets returns every desired index set.
func Sets() []Set {
	return []Set{
		{Collection: "users", Models: userstore.Indexes()},
		{Collection: projectstore.Collection, Models: projectIndexes()},
		{Collection: auditstore.Collection, Models: auditIndexes()},
	}
}

func projectIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		// Owner's projects, most recently updated first (LatestByOwner, ListByOwner).
		{
			Keys:    bson.D{{Key: "user", Value: 1}, {Key: "updatedAt", Value: -1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("idx_projects_user_updated"),
		},
		// Projects a user collaborates on.
		{
			Keys:    bson.D{{Key: "collaborators", Value: 1}, {Key: "updatedAt", Value: -1}},
			Options: options.Index().SetName("idx_projects_collaborators_updated"),
		},
		// Only the few projects with a live video session are indexed.
		{
			Keys: bson.D{{Key: "videoSessionActive", Value: 1}},
			Options: options.Index().
				SetName("idx_projects_video_active").
				SetPartialFilterExpression(bson.M{"videoSessionActive": true}),
		},
	}
}

func auditIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_collab_events_ts"),
		},
		{
			Keys:    bson.D{{Key: "project_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_collab_events_project_ts"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_collab_events_user_ts"),
		},
		{
			Keys: bson.D{
				{Key: "category", Value: 1},
				{Key: "event_type", Value: 1},
				{Key: "timestamp", Value: -1},
			},
			Options: options.Index().SetName("idx_collab_events_category_type_ts"),
		},
	}
}

/* -------------------------------------------------------------------------- */
/* Reconcile one collection                                                   */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

type desired struct {
	model  mongo.IndexModel
	name   string
	unique bool
	sig    string
}

func describe(m mongo.IndexModel) desired {
	d := desired{model: m, sig: keySig(m.Keys.(bson.D))}
	if m.Options != nil {
		if m.Options.Name != nil {
			d.name = *m.Options.Name
		}
		d.unique = m.Options.Unique != nil && *m.Options.Unique
	}
	return d
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func isUnique(p *bool) bool { return p != nil && *p }

// isDuplicateKeyErr detects E11000 across driver error shapes.
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if mongo.IsDuplicateKeyError(err) {
		return true
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	return strings.Contains(err.Error(), "E11000")
}

// Mongo returns IndexOptionsConflict when the same keys exist under another
// name or with different options.
func isOptionsConflictErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "IndexOptionsConflict")
}

func listExisting(ctx context.Context, coll *mongo.Collection) (map[string]existingIndex, error) {
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := map[string]existingIndex{}
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		out[keySig(idx.Key)] = idx
	}
	return out, cur.Err()
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs error
	for _, m := range models {
		if err := ensureOne(ctx, coll, describe(m)); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// ensureOne creates d, reuses an identical index, renames a same-key index
// to d's name, or drops and recreates one whose uniqueness differs.
func ensureOne(ctx context.Context, coll *mongo.Collection, d desired) error {
	start := time.Now()
	log := zap.L().With(
		zap.String("collection", coll.Name()),
		zap.String("name", d.name),
		zap.String("keys", d.sig),
		zap.Bool("unique", d.unique))

	existing, err := listExisting(ctx, coll)
	if err != nil {
		// A missing collection lists nothing; creation below still works.
		log.Debug("list indexes failed", zap.Error(err))
	}

	if ex, ok := existing[d.sig]; ok {
		if isUnique(ex.Unique) == d.unique && (d.name == "" || ex.Name == d.name) {
			log.Info("reusing existing index", zap.Duration("took", time.Since(start)))
			return nil
		}
		return replace(ctx, coll, ex.Name, d, log, start)
	}

	_, err = coll.Indexes().CreateOne(ctx, d.model)
	if err == nil {
		log.Info("index ensured", zap.Duration("took", time.Since(start)))
		return nil
	}
	if isOptionsConflictErr(err) {
		if existing, lerr := listExisting(ctx, coll); lerr == nil {
			if ex, ok := existing[d.sig]; ok {
				return replace(ctx, coll, ex.Name, d, log, start)
			}
		}
	}
	log.Warn("index ensure failed", zap.Error(err))
	return createErr(coll, d, err)
}

func replace(ctx context.Context, coll *mongo.Collection, oldName string, d desired, log *zap.Logger, start time.Time) error {
	if _, err := coll.Indexes().DropOne(ctx, oldName); err != nil {
		log.Warn("drop existing index failed", zap.String("existing", oldName), zap.Error(err))
		return fmt.Errorf("%s: drop %s failed: %w", d.name, oldName, err)
	}
	if _, err := coll.Indexes().CreateOne(ctx, d.model); err != nil {
		log.Warn("recreate index failed", zap.Error(err))
		return createErr(coll, d, err)
	}
	log.Info("index dropped and recreated",
		zap.String("previous", oldName),
		zap.Duration("took", time.Since(start)))
	return nil
}

func createErr(coll *mongo.Collection, d desired, err error) error {
	if d.unique && isDuplicateKeyErr(err) {
		return fmt.Errorf("%s: cannot create unique index, duplicates present in %s(%s)", d.name, coll.Name(), d.sig)
	}
	return fmt.Errorf("%s: %w", d.name, err)
}
