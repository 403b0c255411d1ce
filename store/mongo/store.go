// Package mongo provides a MongoDB implementation of the Bastion composite
// store. Commits run in multi-document transactions and therefore need a
// replica set or sharded deployment.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/bastion/assignment"
	"github.com/xraph/bastion/audit"
	"github.com/xraph/bastion/permission"
	"github.com/xraph/bastion/role"
	"github.com/xraph/bastion/store"
)

// Collection name constants.
const (
	colAssignments     = "bastion_assignments"
	colRolePermissions = "bastion_role_permissions"
	colAudit           = "bastion_audit"
	colCounters        = "bastion_counters"
)

// auditCounter is the _id of the audit head document in colCounters.
const auditCounter = "audit"

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a MongoDB implementation of the composite Bastion store.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// Migrate creates indexes for all bastion collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("bastion/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all bastion collections.
func migrationIndexes() map[string][]mongod.IndexModel {
	return map[string][]mongod.IndexModel{
		colAssignments: {
			{Keys: bson.D{{Key: "roles", Value: 1}}},
		},
		colAudit: {
			{
				Keys:    bson.D{{Key: "record_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "entity_type", Value: 1}, {Key: "entity_id", Value: 1}, {Key: "_id", Value: 1}}},
			{Keys: bson.D{{Key: "changed_at", Value: 1}}},
		},
	}
}

// ──────────────────────────────────────────────────
// Assignment operations
// ──────────────────────────────────────────────────

func (s *Store) GetAssignment(ctx context.Context, actorID string) (*assignment.Assignment, error) {
	var m assignmentModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": actorID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("assignment %s: %w", actorID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("bastion/mongo: get assignment: %w", err)
	}
	return assignmentFromModel(&m), nil
}

func assignmentFilter(filter *assignment.ListFilter) bson.M {
	f := bson.M{}
	if filter != nil {
		if filter.StaffOnly {
			f["roles.0"] = bson.M{"$exists": true}
		}
		if filter.Role != "" {
			f["roles"] = string(filter.Role)
		}
	}
	return f
}

func (s *Store) ListAssignments(ctx context.Context, filter *assignment.ListFilter) ([]*assignment.Assignment, error) {
	var models []assignmentModel
	q := s.mdb.NewFind(&models).
		Filter(assignmentFilter(filter)).
		Sort(bson.D{{Key: "_id", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion/mongo: list assignments: %w", err)
	}
	result := make([]*assignment.Assignment, len(models))
	for i := range models {
		result[i] = assignmentFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountAssignments(ctx context.Context, filter *assignment.ListFilter) (int64, error) {
	count, err := s.mdb.NewFind((*assignmentModel)(nil)).
		Filter(assignmentFilter(filter)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("bastion/mongo: count assignments: %w", err)
	}
	return count, nil
}

func (s *Store) CommitAssignment(ctx context.Context, a *assignment.Assignment, records []*audit.Record) error {
	return s.commit(ctx, colAssignments, "assignment "+a.ActorID, a.ActorID, assignmentToModel(a), a.Version, records)
}

// ──────────────────────────────────────────────────
// Permission catalog operations
// ──────────────────────────────────────────────────

func (s *Store) GetRolePermissionSet(ctx context.Context, r role.Name) (*permission.Set, error) {
	var m permissionSetModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": string(r)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("permission set %s: %w", r, store.ErrNotFound)
		}
		return nil, fmt.Errorf("bastion/mongo: get permission set: %w", err)
	}
	return permissionSetFromModel(&m), nil
}

func (s *Store) ListRolePermissionSets(ctx context.Context, filter *permission.ListFilter) ([]*permission.Set, error) {
	f := bson.M{}
	if filter != nil && len(filter.Roles) > 0 {
		f["_id"] = bson.M{"$in": role.Set(filter.Roles).Strings()}
	}
	var models []permissionSetModel
	err := s.mdb.NewFind(&models).
		Filter(f).
		Sort(bson.D{{Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion/mongo: list permission sets: %w", err)
	}
	result := make([]*permission.Set, len(models))
	for i := range models {
		result[i] = permissionSetFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CommitRolePermissionSet(ctx context.Context, ps *permission.Set, records []*audit.Record) error {
	return s.commit(ctx, colRolePermissions, "permission set "+string(ps.Role), string(ps.Role), permissionSetToModel(ps), ps.Version, records)
}

// ──────────────────────────────────────────────────
// Audit operations
// ──────────────────────────────────────────────────

func (s *Store) ListAudit(ctx context.Context, filter *audit.QueryFilter) ([]*audit.Record, error) {
	f := bson.M{}
	var limit int64
	if filter != nil {
		if filter.AfterSeq > 0 {
			f["_id"] = bson.M{"$gt": filter.AfterSeq}
		}
		if filter.EntityType != "" {
			f["entity_type"] = string(filter.EntityType)
		}
		if filter.EntityID != "" {
			f["entity_id"] = filter.EntityID
		}
		if filter.Since != nil {
			f["changed_at"] = bson.M{"$gte": filter.Since.UTC()}
		}
		limit = int64(filter.Limit)
	}
	var models []auditModel
	q := s.mdb.NewFind(&models).
		Filter(f).
		Sort(bson.D{{Key: "_id", Value: 1}})
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion/mongo: list audit: %w", err)
	}
	result := make([]*audit.Record, len(models))
	for i := range models {
		result[i] = auditFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) LastAudit(ctx context.Context) (*audit.Record, error) {
	var m auditModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "_id", Value: -1}}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("audit head: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("bastion/mongo: last audit: %w", err)
	}
	return auditFromModel(&m), nil
}

// ──────────────────────────────────────────────────
// Commit
// ──────────────────────────────────────────────────

// commit stores doc in col with a compare-and-set on its version and
// appends records to the audit chain inside one session transaction.
func (s *Store) commit(ctx context.Context, col, what, key string, doc any, version int64, records []*audit.Record) error {
	client := s.mdb.Collection(col).Database().Client()
	sess, err := client.StartSession()
	if err != nil {
		return fmt.Errorf("bastion/mongo: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc context.Context) (any, error) {
		if err := s.writeVersioned(sc, col, what, key, doc, version); err != nil {
			return nil, err
		}
		return nil, s.appendAudit(sc, records)
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return err
		}
		return fmt.Errorf("bastion/mongo: commit %s: %w", what, err)
	}
	return nil
}

func (s *Store) writeVersioned(ctx context.Context, col, what, key string, doc any, version int64) error {
	c := s.mdb.Collection(col)
	if version == 1 {
		if _, err := c.InsertOne(ctx, doc); err != nil {
			if mongod.IsDuplicateKeyError(err) {
				return fmt.Errorf("%s already exists: %w", what, store.ErrConflict)
			}
			return err
		}
		return nil
	}
	res, err := c.ReplaceOne(ctx, bson.M{"_id": key, "version": version - 1}, doc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s at version %d: %w", what, version-1, store.ErrConflict)
	}
	return nil
}

func (s *Store) appendAudit(ctx context.Context, records []*audit.Record) error {
	if len(records) == 0 {
		return nil
	}
	counters := s.mdb.Collection(colCounters)

	var head auditHeadModel
	err := counters.FindOne(ctx, bson.M{"_id": auditCounter}).Decode(&head)
	if err != nil && !isNoDocuments(err) {
		return err
	}
	fresh := err != nil

	seq, prev := head.Seq, head.Hash
	docs := make([]any, len(records))
	for i, r := range records {
		seq++
		audit.Link(r, seq, prev)
		prev = r.Hash
		docs[i] = auditToModel(r)
	}

	next := auditHeadModel{ID: auditCounter, Seq: seq, Hash: prev}
	if fresh {
		if _, err := counters.InsertOne(ctx, next); err != nil {
			if mongod.IsDuplicateKeyError(err) {
				return fmt.Errorf("audit head created concurrently: %w", store.ErrConflict)
			}
			return err
		}
	} else {
		res, err := counters.ReplaceOne(ctx, bson.M{"_id": auditCounter, "seq": head.Seq}, next)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return fmt.Errorf("audit head moved past %d: %w", head.Seq, store.ErrConflict)
		}
	}

	_, err = s.mdb.Collection(colAudit).InsertMany(ctx, docs)
	return err
}
