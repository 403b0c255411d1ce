package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate" // registers the migration executor
	"github.com/xraph/grove/migrate"

	"github.com/xraph/bastion/assignment"
	"github.com/xraph/bastion/audit"
	"github.com/xraph/bastion/permission"
	"github.com/xraph/bastion/role"
	"github.com/xraph/bastion/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a SQLite implementation of the composite Bastion store.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// Migrate runs programmatic migrations via the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("bastion/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("bastion/sqlite: migration failed: %w", err)
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

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// ──────────────────────────────────────────────────
// Assignment operations
// ──────────────────────────────────────────────────

const (
	staffClause = "json_array_length(roles) > 0"
	roleClause  = "EXISTS (SELECT 1 FROM json_each(roles) WHERE json_each.value = ?)"
)

func (s *Store) GetAssignment(ctx context.Context, actorID string) (*assignment.Assignment, error) {
	m := new(assignmentModel)
	err := s.sdb.NewSelect(m).Where("actor_id = ?", actorID).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("assignment %s: %w", actorID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("bastion/sqlite: get assignment: %w", err)
	}
	return assignmentFromModel(m)
}

func (s *Store) ListAssignments(ctx context.Context, filter *assignment.ListFilter) ([]*assignment.Assignment, error) {
	var models []assignmentModel
	q := s.sdb.NewSelect(&models).OrderExpr("actor_id ASC")
	if filter != nil {
		if filter.StaffOnly {
			q = q.Where(staffClause)
		}
		if filter.Role != "" {
			q = q.Where(roleClause, string(filter.Role))
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion/sqlite: list assignments: %w", err)
	}
	result := make([]*assignment.Assignment, 0, len(models))
	for i := range models {
		a, err := assignmentFromModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, nil
}

func (s *Store) CountAssignments(ctx context.Context, filter *assignment.ListFilter) (int64, error) {
	q := s.sdb.NewSelect((*assignmentModel)(nil))
	if filter != nil {
		if filter.StaffOnly {
			q = q.Where(staffClause)
		}
		if filter.Role != "" {
			q = q.Where(roleClause, string(filter.Role))
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("bastion/sqlite: count assignments: %w", err)
	}
	return count, nil
}

func (s *Store) CommitAssignment(ctx context.Context, a *assignment.Assignment, records []*audit.Record) error {
	m, err := assignmentToModel(a)
	if err != nil {
		return err
	}
	return s.commit(ctx, "assignment "+a.ActorID, m, "actor_id", a.Version, records)
}

// ──────────────────────────────────────────────────
// Permission catalog operations
// ──────────────────────────────────────────────────

func (s *Store) GetRolePermissionSet(ctx context.Context, r role.Name) (*permission.Set, error) {
	m := new(permissionSetModel)
	err := s.sdb.NewSelect(m).Where("role = ?", string(r)).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("permission set %s: %w", r, store.ErrNotFound)
		}
		return nil, fmt.Errorf("bastion/sqlite: get permission set: %w", err)
	}
	return permissionSetFromModel(m)
}

func (s *Store) ListRolePermissionSets(ctx context.Context, filter *permission.ListFilter) ([]*permission.Set, error) {
	var models []permissionSetModel
	if err := s.sdb.NewSelect(&models).OrderExpr("role ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion/sqlite: list permission sets: %w", err)
	}
	result := make([]*permission.Set, 0, len(models))
	for i := range models {
		ps, err := permissionSetFromModel(&models[i])
		if err != nil {
			return nil, err
		}
		if filter != nil && len(filter.Roles) > 0 && !role.Set(filter.Roles).Has(ps.Role) {
			continue
		}
		result = append(result, ps)
	}
	return result, nil
}

func (s *Store) CommitRolePermissionSet(ctx context.Context, ps *permission.Set, records []*audit.Record) error {
	m, err := permissionSetToModel(ps)
	if err != nil {
		return err
	}
	return s.commit(ctx, "permission set "+string(ps.Role), m, "role", ps.Version, records)
}

// ──────────────────────────────────────────────────
// Audit operations
// ──────────────────────────────────────────────────

func (s *Store) ListAudit(ctx context.Context, filter *audit.QueryFilter) ([]*audit.Record, error) {
	var models []auditModel
	q := s.sdb.NewSelect(&models).OrderExpr("seq ASC")
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
			q = q.Where("changed_at >= ?", filter.Since.UTC())
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion/sqlite: list audit: %w", err)
	}
	result := make([]*audit.Record, len(models))
	for i := range models {
		result[i] = auditFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) LastAudit(ctx context.Context) (*audit.Record, error) {
	m := new(auditModel)
	err := s.sdb.NewSelect(m).OrderExpr("seq DESC").Limit(1).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("audit head: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("bastion/sqlite: last audit: %w", err)
	}
	return auditFromModel(m), nil
}

// ──────────────────────────────────────────────────
// Commit
// ──────────────────────────────────────────────────

// commit writes m with a compare-and-set on its version and appends records
// to the audit chain in one transaction. See the postgres store for the
// ordering of the head update.
func (s *Store) commit(ctx context.Context, what string, m any, pk string, version int64, records []*audit.Record) error {
	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("bastion/sqlite: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	var n int64
	if version == 1 {
		res, err := tx.NewInsert(m).OnConflict("(" + pk + ") DO NOTHING").Exec(ctx)
		if err != nil {
			return fmt.Errorf("bastion/sqlite: insert %s: %w", what, err)
		}
		if n, err = res.RowsAffected(); err != nil {
			return fmt.Errorf("bastion/sqlite: insert %s rows: %w", what, err)
		}
	} else {
		res, err := tx.NewUpdate(m).WherePK().Where("version = ?", version-1).Exec(ctx)
		if err != nil {
			return fmt.Errorf("bastion/sqlite: update %s: %w", what, err)
		}
		if n, err = res.RowsAffected(); err != nil {
			return fmt.Errorf("bastion/sqlite: update %s rows: %w", what, err)
		}
	}
	if n == 0 {
		return fmt.Errorf("%s at version %d: %w", what, version-1, store.ErrConflict)
	}

	if len(records) > 0 {
		head := new(auditHeadModel)
		if err := tx.NewSelect(head).Where("id = ?", 1).Scan(ctx); err != nil {
			return fmt.Errorf("bastion/sqlite: read audit head: %w", err)
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
			return fmt.Errorf("bastion/sqlite: advance audit head: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("bastion/sqlite: advance audit head rows: %w", err)
		} else if n == 0 {
			return fmt.Errorf("audit head moved past %d: %w", head.Seq, store.ErrConflict)
		}

		if _, err := tx.NewInsert(&models).Exec(ctx); err != nil {
			return fmt.Errorf("bastion/sqlite: append audit: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("bastion/sqlite: commit tx: %w", err)
	}
	return nil
}
