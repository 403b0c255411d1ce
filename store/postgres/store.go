// Package postgres provides a PostgreSQL implementation of the Bastion
// composite store using grove ORM with Go-based migrations.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	_ "github.com/xraph/grove/drivers/pgdriver/pgmigrate" // registers the migration executor
	"github.com/xraph/grove/migrate"

	"github.com/xraph/bastion/assignment"
	"github.com/xraph/bastion/audit"
	"github.com/xraph/bastion/permission"
	"github.com/xraph/bastion/role"
	"github.com/xraph/bastion/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a PostgreSQL implementation of the composite Bastion store.
type Store struct {
	db   *grove.DB
	pgdb *pgdriver.PgDB
}

// New creates a new PostgreSQL store.
func New(db *grove.DB) *Store {
	return &Store{
		db:   db,
		pgdb: pgdriver.Unwrap(db),
	}
}

// Migrate runs programmatic migrations via the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pgdb)
	if err != nil {
		return fmt.Errorf("bastion: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("bastion: migration failed: %w", err)
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

// ──────────────────────────────────────────────────
// Assignment operations
// ──────────────────────────────────────────────────

func (s *Store) GetAssignment(ctx context.Context, actorID string) (*assignment.Assignment, error) {
	m := new(assignmentModel)
	err := s.pgdb.NewSelect(m).Where("actor_id = ?", actorID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("assignment %s: %w", actorID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("bastion: get assignment: %w", err)
	}
	return assignmentFromModel(m), nil
}

func (s *Store) ListAssignments(ctx context.Context, filter *assignment.ListFilter) ([]*assignment.Assignment, error) {
	var models []assignmentModel
	q := s.pgdb.NewSelect(&models).OrderExpr("actor_id ASC")
	if filter != nil {
		if filter.StaffOnly {
			q = q.Where("jsonb_array_length(roles) > 0")
		}
		if filter.Role != "" {
			q = q.Where("roles @> ?::jsonb", roleContains(filter.Role))
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list assignments: %w", err)
	}
	result := make([]*assignment.Assignment, len(models))
	for i := range models {
		result[i] = assignmentFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountAssignments(ctx context.Context, filter *assignment.ListFilter) (int64, error) {
	q := s.pgdb.NewSelect((*assignmentModel)(nil))
	if filter != nil {
		if filter.StaffOnly {
			q = q.Where("jsonb_array_length(roles) > 0")
		}
		if filter.Role != "" {
			q = q.Where("roles @> ?::jsonb", roleContains(filter.Role))
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("bastion: count assignments: %w", err)
	}
	return count, nil
}

func (s *Store) CommitAssignment(ctx context.Context, a *assignment.Assignment, records []*audit.Record) error {
	return s.commit(ctx, "assignment "+a.ActorID, assignmentToModel(a), "actor_id", a.Version, records)
}

// ──────────────────────────────────────────────────
// Permission catalog operations
// ──────────────────────────────────────────────────

func (s *Store) GetRolePermissionSet(ctx context.Context, r role.Name) (*permission.Set, error) {
	m := new(permissionSetModel)
	err := s.pgdb.NewSelect(m).Where("role = ?", string(r)).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("permission set %s: %w", r, store.ErrNotFound)
		}
		return nil, fmt.Errorf("bastion: get permission set: %w", err)
	}
	return permissionSetFromModel(m), nil
}

func (s *Store) ListRolePermissionSets(ctx context.Context, filter *permission.ListFilter) ([]*permission.Set, error) {
	var models []permissionSetModel
	q := s.pgdb.NewSelect(&models).OrderExpr("role ASC")
	if filter != nil && len(filter.Roles) > 0 {
		names := make([]string, len(filter.Roles))
		for i, r := range filter.Roles {
			names[i] = string(r)
		}
		q = q.Where("role = ANY(?)", names)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list permission sets: %w", err)
	}
	result := make([]*permission.Set, len(models))
	for i := range models {
		result[i] = permissionSetFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CommitRolePermissionSet(ctx context.Context, ps *permission.Set, records []*audit.Record) error {
	return s.commit(ctx, "permission set "+string(ps.Role), permissionSetToModel(ps), "role", ps.Version, records)
}

// ──────────────────────────────────────────────────
// Audit operations
// ──────────────────────────────────────────────────

func (s *Store) ListAudit(ctx context.Context, filter *audit.QueryFilter) ([]*audit.Record, error) {
	var models []auditModel
	q := s.pgdb.NewSelect(&models).OrderExpr("seq ASC")
	if filter != nil {
		if filter.AfterSeq > 0 {
			q = q.Where("seq > ?", filter.AfterSeq)
		}
		if filter.EntityType != "" {
			q = q.Where("entity_type = ?", string(filter.EntityType))
		}
		if filter.EntityID != "" {
			q = q.Where("entity_id = ?", filter.EntityID)
		}
		if filter.Since != nil {
			q = q.Where("changed_at >= ?", *filter.Since)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list audit: %w", err)
	}
	result := make([]*audit.Record, len(models))
	for i := range models {
		result[i] = auditFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) LastAudit(ctx context.Context) (*audit.Record, error) {
	m := new(auditModel)
	err := s.pgdb.NewSelect(m).OrderExpr("seq DESC").Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("audit head: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("bastion: last audit: %w", err)
	}
	return auditFromModel(m), nil
}

// ──────────────────────────────────────────────────
// Commit
// ──────────────────────────────────────────────────

// commit writes m with a compare-and-set on its version and appends records
// to the audit chain, all in one transaction. Version 1 inserts; later
// versions update only a row still at version-1. The audit head row is
// advanced before the records are inserted so that a concurrent writer
// fails the head CAS instead of a unique constraint.
func (s *Store) commit(ctx context.Context, what string, m any, pk string, version int64, records []*audit.Record) error {
	tx, err := s.pgdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("bastion: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	var n int64
	if version == 1 {
		res, err := tx.NewInsert(m).OnConflict("(" + pk + ") DO NOTHING").Exec(ctx)
		if err != nil {
			return fmt.Errorf("bastion: insert %s: %w", what, err)
		}
		if n, err = res.RowsAffected(); err != nil {
			return fmt.Errorf("bastion: insert %s rows: %w", what, err)
		}
	} else {
		res, err := tx.NewUpdate(m).WherePK().Where("version = ?", version-1).Exec(ctx)
		if err != nil {
			return fmt.Errorf("bastion: update %s: %w", what, err)
		}
		if n, err = res.RowsAffected(); err != nil {
			return fmt.Errorf("bastion: update %s rows: %w", what, err)
		}
	}
	if n == 0 {
		return fmt.Errorf("%s at version %d: %w", what, version-1, store.ErrConflict)
	}

	if len(records) > 0 {
		head := new(auditHeadModel)
		if err := tx.NewSelect(head).Where("id = ?", 1).Scan(ctx); err != nil {
			return fmt.Errorf("bastion: read audit head: %w", err)
		}
		seq, prev := head.Seq, head.Hash
		models := make([]auditModel, len(records))
		for i, r := range records {
			seq++
			audit.Link(r, seq, prev)
			prev = r.Hash
			models[i] = auditToModel(r)
		}

		next := &auditHeadModel{ID: 1, Seq: seq, Hash: prev}
		res, err := tx.NewUpdate(next).WherePK().Where("seq = ?", head.Seq).Exec(ctx)
		if err != nil {
			return fmt.Errorf("bastion: advance audit head: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("bastion: advance audit head rows: %w", err)
		} else if n == 0 {
			return fmt.Errorf("audit head moved past %d: %w", head.Seq, store.ErrConflict)
		}

		if _, err := tx.NewInsert(&models).Exec(ctx); err != nil {
			return fmt.Errorf("bastion: append audit: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("bastion: commit tx: %w", err)
	}
	return nil
}

// roleContains renders the jsonb containment operand for a role filter.
func roleContains(r role.Name) string {
	b, _ := json.Marshal([]string{string(r)}) //nolint:errcheck // a string slice always encodes
	return string(b)
}
