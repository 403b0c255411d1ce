package bastion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/bastion/assignment"
	"github.com/xraph/bastion/audit"
	"github.com/xraph/bastion/permission"
	"github.com/xraph/bastion/role"
	"github.com/xraph/bastion/store"
)

// Snapshot is the complete input of a decision: a consistent, versioned view
// of the assignments of a few actors and the whole role catalog. Snapshots
// are built per dispatch and never mutated afterwards.
type Snapshot struct {
	// Version is the audit sequence number of the newest committed change.
	Version int64 `json:"version"`

	SuperAdminID string                            `json:"super_admin_id,omitempty"`
	Assignments  map[string]*assignment.Assignment `json:"assignments"`
	Catalog      map[role.Name]*permission.Set     `json:"catalog"`

	// Degraded is set when the store could not be read. Only Trusted holds
	// usable assignments then.
	Degraded bool                              `json:"degraded,omitempty"`
	Trusted  map[string]*assignment.Assignment `json:"trusted,omitempty"`

	LoadedAt time.Time `json:"loaded_at"`
}

// Assignment returns the record of actorID, or the empty record.
func (s *Snapshot) Assignment(actorID string) *assignment.Assignment {
	if a, ok := s.Assignments[actorID]; ok && a != nil {
		return a
	}
	return assignment.Empty(actorID)
}

// Snapshot loads the current assignments of actorIDs together with the role
// catalog. The reads run concurrently, each bounded by the store timeout.
//
// If any read fails the returned snapshot is degraded and the error wraps
// ErrInfraFailure; the snapshot is still usable with Resolve, which then
// fails closed.
func (e *Engine) Snapshot(ctx context.Context, actorIDs ...string) (*Snapshot, error) {
	snap := &Snapshot{
		SuperAdminID: e.config.SuperAdminID,
		Assignments:  make(map[string]*assignment.Assignment, len(actorIDs)),
		Catalog:      make(map[role.Name]*permission.Set),
		LoadedAt:     e.now(),
	}

	loaded := make([]*assignment.Assignment, len(actorIDs))
	var (
		sets []*permission.Set
		head int64
	)

	g, gctx := errgroup.WithContext(ctx)
	for i, actorID := range actorIDs {
		g.Go(func() error {
			a, err := e.getAssignment(gctx, actorID)
			loaded[i] = a
			return err
		})
	}
	g.Go(func() error {
		return e.call(gctx, "list_role_permission_sets", func(ctx context.Context) error {
			var err error
			sets, err = e.store.ListRolePermissionSets(ctx, nil)
			return err
		})
	})
	g.Go(func() error {
		return e.call(gctx, "last_audit", func(ctx context.Context) error {
			last, err := e.store.LastAudit(ctx)
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			head = last.Seq
			return nil
		})
	})

	if err := g.Wait(); err != nil {
		snap.Degraded = true
		snap.Assignments = map[string]*assignment.Assignment{}
		snap.Trusted = make(map[string]*assignment.Assignment)
		for _, actorID := range actorIDs {
			if !e.config.isTrusted(actorID) {
				continue
			}
			if a, ok := e.fallback.Recall(ctx, actorID); ok {
				snap.Trusted[actorID] = a
			}
		}
		return snap, fmt.Errorf("load snapshot: %w", err)
	}

	for _, a := range loaded {
		snap.Assignments[a.ActorID] = a
		if e.config.isTrusted(a.ActorID) {
			e.fallback.Remember(ctx, a)
		}
	}
	for _, s := range sets {
		snap.Catalog[s.Role] = s
	}
	snap.Version = head
	return snap, nil
}

// getAssignment reads the record of actorID, returning the empty record
// when none is stored.
func (e *Engine) getAssignment(ctx context.Context, actorID string) (*assignment.Assignment, error) {
	var a *assignment.Assignment
	err := e.call(ctx, "get_assignment", func(ctx context.Context) error {
		var err error
		a, err = e.store.GetAssignment(ctx, actorID)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return assignment.Empty(actorID), nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// auditHead returns the newest audit record, or nil for an empty log.
func (e *Engine) auditHead(ctx context.Context) (*audit.Record, error) {
	var last *audit.Record
	err := e.call(ctx, "last_audit", func(ctx context.Context) error {
		var err error
		last, err = e.store.LastAudit(ctx)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil //nolint:nilnil // empty log
	}
	return last, err
}
