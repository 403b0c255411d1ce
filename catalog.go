package bastion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/xraph/bastion/audit"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/permission"
	"github.com/xraph/bastion/role"
	"github.com/xraph/bastion/store"
)

// GetRolePermissionSet returns the catalog entry of r. A role with nothing
// stored grants nothing and yields an empty set.
func (e *Engine) GetRolePermissionSet(ctx context.Context, r role.Name) (*permission.Set, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, r)
	}
	return e.getRolePermissionSet(ctx, r)
}

// ListRolePermissionSets returns every stored catalog entry, ordered by role.
func (e *Engine) ListRolePermissionSets(ctx context.Context) ([]*permission.Set, error) {
	var sets []*permission.Set
	err := e.call(ctx, "list_role_permission_sets", func(ctx context.Context) error {
		var err error
		sets, err = e.store.ListRolePermissionSets(ctx, nil)
		return err
	})
	return sets, err
}

// SetRolePermissionSet replaces the common and scoped entries of r. The
// caller must hold r itself or a strictly higher role; the super admin is
// exempt. One audit record captures the full before and after sets.
func (e *Engine) SetRolePermissionSet(ctx context.Context, callerID string, r role.Name, common, scoped []string) error {
	if !r.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrValidation, r)
	}
	c, err := permission.NormalizeEntries(common)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	s, err := permission.NormalizeEntries(scoped)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	_, err = e.commitCatalog(ctx, e.caller(callerID), r, c, s, false)
	return err
}

// SeedCatalog stores the entries of catalog for every role that has no
// stored set yet, as the system actor. Existing entries are never touched.
// It returns the roles that were seeded.
func (e *Engine) SeedCatalog(ctx context.Context, catalog map[role.Name]*permission.Set) ([]role.Name, error) {
	var (
		seeded []role.Name
		errs   []error
	)
	for _, r := range role.All {
		entry, ok := catalog[r]
		if !ok || entry == nil {
			continue
		}
		c, err := permission.NormalizeEntries(entry.Common)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrValidation, r, err))
			continue
		}
		s, err := permission.NormalizeEntries(entry.Scoped)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrValidation, r, err))
			continue
		}
		changed, err := e.commitCatalog(ctx, systemPrincipal, r, c, s, true)
		if err != nil {
			errs = append(errs, fmt.Errorf("seed %s: %w", r, err))
			continue
		}
		if changed {
			seeded = append(seeded, r)
		}
	}
	return seeded, errors.Join(errs...)
}

// commitCatalog writes the entries of r under the role's lock. With onlyNew
// set an existing entry is left alone.
func (e *Engine) commitCatalog(ctx context.Context, p principal, r role.Name, common, scoped []string, onlyNew bool) (bool, error) {
	unlock, err := e.locker.Lock(ctx, "role:"+string(r))
	if err != nil {
		return false, e.infraFailure(ctx, "lock_role", err)
	}
	defer unlock()

	var before, after *permission.Set
	err = e.retryConflicts(ctx, "commit_role_permission_set "+string(r), func() error {
		before, after = nil, nil
		cur, err := e.getRolePermissionSet(ctx, r)
		if err != nil {
			return err
		}
		if onlyNew && cur.Version > 0 {
			return nil
		}
		if !p.exempt() {
			caller, err := e.getAssignment(ctx, p.id)
			if err != nil {
				return err
			}
			if !role.CanEditCatalog(caller.Roles, r) {
				return fmt.Errorf("%w: %s may not edit the permissions of %s", ErrPermission, p.id, r)
			}
		}
		if slices.Equal(cur.Common, common) && slices.Equal(cur.Scoped, scoped) {
			return nil
		}

		next := cur.Clone()
		next.Common = slices.Clone(common)
		next.Scoped = slices.Clone(scoped)
		next.Version = cur.Version + 1
		next.UpdatedBy = p.id
		next.UpdatedAt = e.timestamp()

		rec := &audit.Record{
			ID:         id.NewAuditID(),
			EntityType: audit.EntityRole,
			EntityID:   string(r),
			Field:      audit.FieldPermissions,
			OldValue:   encodeCatalog(cur),
			NewValue:   encodeCatalog(next),
			ChangedBy:  p.id,
			ChangedAt:  next.UpdatedAt,
			Reason:     reasonFromContext(ctx),
		}
		if err := e.call(ctx, "commit_role_permission_set", func(ctx context.Context) error {
			return e.store.CommitRolePermissionSet(ctx, next, []*audit.Record{rec})
		}); err != nil {
			return err
		}
		before, after = cur, next
		return nil
	})
	if err != nil || after == nil {
		return false, err
	}

	e.logger.Info("role permissions changed",
		slog.String("role", string(r)),
		slog.String("changed_by", p.id),
		slog.Int("common", len(after.Common)),
		slog.Int("scoped", len(after.Scoped)),
	)
	e.plugins.EmitCatalogChanged(ctx, p.id, before, after)
	return true, nil
}

func (e *Engine) getRolePermissionSet(ctx context.Context, r role.Name) (*permission.Set, error) {
	var s *permission.Set
	err := e.call(ctx, "get_role_permission_set", func(ctx context.Context) error {
		var err error
		s, err = e.store.GetRolePermissionSet(ctx, r)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return permission.Empty(r), nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

type catalogValue struct {
	Common []string `json:"common"`
	Scoped []string `json:"scoped"`
}

func encodeCatalog(s *permission.Set) string {
	v := catalogValue{Common: s.Common, Scoped: s.Scoped}
	if v.Common == nil {
		v.Common = []string{}
	}
	if v.Scoped == nil {
		v.Scoped = []string{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
