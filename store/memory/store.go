// Package memory provides an in-memory implementation of the Bastion
// composite store. It is intended for testing and development.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/xraph/bastion/assignment"
	"github.com/xraph/bastion/audit"
	"github.com/xraph/bastion/permission"
	"github.com/xraph/bastion/role"
	"github.com/xraph/bastion/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a thread-safe in-memory store.
type Store struct {
	mu sync.RWMutex

	assignments map[string]*assignment.Assignment
	catalog     map[role.Name]*permission.Set
	audit       []*audit.Record

	// failWith, when set, is returned by every operation. Tests use it to
	// simulate an unreachable backend.
	failWith error
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		assignments: make(map[string]*assignment.Assignment),
		catalog:     make(map[role.Name]*permission.Set),
	}
}

// SetFailure makes every subsequent call return err; nil restores service.
func (s *Store) SetFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping reports the simulated failure, if any.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failWith
}

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Assignment Store
// ──────────────────────────────────────────────────

func (s *Store) GetAssignment(_ context.Context, actorID string) (*assignment.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	a, ok := s.assignments[actorID]
	if !ok {
		return nil, fmt.Errorf("assignment %s: %w", actorID, store.ErrNotFound)
	}
	return a.Clone(), nil
}

func (s *Store) ListAssignments(_ context.Context, filter *assignment.ListFilter) ([]*assignment.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	result := s.filterAssignments(filter)
	sort.Slice(result, func(i, j int) bool { return result[i].ActorID < result[j].ActorID })
	if filter != nil {
		result = applyPagination(result, filter.Limit, filter.Offset)
	}
	return result, nil
}

func (s *Store) CountAssignments(_ context.Context, filter *assignment.ListFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failWith != nil {
		return 0, s.failWith
	}
	return int64(len(s.filterAssignments(filter))), nil
}

func (s *Store) filterAssignments(f *assignment.ListFilter) []*assignment.Assignment {
	var result []*assignment.Assignment
	for _, a := range s.assignments {
		if f != nil {
			if f.StaffOnly && !a.Team() {
				continue
			}
			if f.Role != "" && !a.Roles.Has(f.Role) {
				continue
			}
		}
		result = append(result, a.Clone())
	}
	return result
}

func (s *Store) CommitAssignment(_ context.Context, a *assignment.Assignment, records []*audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	var current int64
	if cur, ok := s.assignments[a.ActorID]; ok {
		current = cur.Version
	}
	if current != a.Version-1 {
		return fmt.Errorf("assignment %s at version %d: %w", a.ActorID, current, store.ErrConflict)
	}
	s.assignments[a.ActorID] = a.Clone()
	s.appendAudit(records)
	return nil
}

// ──────────────────────────────────────────────────
// Permission Store
// ──────────────────────────────────────────────────

func (s *Store) GetRolePermissionSet(_ context.Context, r role.Name) (*permission.Set, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	ps, ok := s.catalog[r]
	if !ok {
		return nil, fmt.Errorf("permission set %s: %w", r, store.ErrNotFound)
	}
	return ps.Clone(), nil
}

func (s *Store) ListRolePermissionSets(_ context.Context, filter *permission.ListFilter) ([]*permission.Set, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	var result []*permission.Set
	for r, ps := range s.catalog {
		if filter != nil && len(filter.Roles) > 0 && !slices.Contains(filter.Roles, r) {
			continue
		}
		result = append(result, ps.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return strings.Compare(string(result[i].Role), string(result[j].Role)) < 0 })
	return result, nil
}

func (s *Store) CommitRolePermissionSet(_ context.Context, ps *permission.Set, records []*audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	var current int64
	if cur, ok := s.catalog[ps.Role]; ok {
		current = cur.Version
	}
	if current != ps.Version-1 {
		return fmt.Errorf("permission set %s at version %d: %w", ps.Role, current, store.ErrConflict)
	}
	s.catalog[ps.Role] = ps.Clone()
	s.appendAudit(records)
	return nil
}

// ──────────────────────────────────────────────────
// Audit Store
// ──────────────────────────────────────────────────

func (s *Store) ListAudit(_ context.Context, filter *audit.QueryFilter) ([]*audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	var result []*audit.Record
	for _, r := range s.audit {
		if filter != nil {
			if r.Seq <= filter.AfterSeq {
				continue
			}
			if filter.EntityType != "" && r.EntityType != filter.EntityType {
				continue
			}
			if filter.EntityID != "" && r.EntityID != filter.EntityID {
				continue
			}
			if filter.Since != nil && r.ChangedAt.Before(*filter.Since) {
				continue
			}
		}
		cp := *r
		result = append(result, &cp)
		if filter != nil && filter.Limit > 0 && len(result) == filter.Limit {
			break
		}
	}
	return result, nil
}

func (s *Store) LastAudit(_ context.Context) (*audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	if len(s.audit) == 0 {
		return nil, fmt.Errorf("audit head: %w", store.ErrNotFound)
	}
	cp := *s.audit[len(s.audit)-1]
	return &cp, nil
}

// appendAudit links and appends records. Must hold write lock.
func (s *Store) appendAudit(records []*audit.Record) {
	var (
		seq  int64
		prev string
	)
	if n := len(s.audit); n > 0 {
		seq, prev = s.audit[n-1].Seq, s.audit[n-1].Hash
	}
	for _, r := range records {
		seq++
		audit.Link(r, seq, prev)
		prev = r.Hash
		cp := *r
		s.audit = append(s.audit, &cp)
	}
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func applyPagination[T any](items []*T, limit, offset int) []*T {
	if offset > 0 && offset < len(items) {
		items = items[offset:]
	} else if offset >= len(items) && offset > 0 {
		return nil
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
