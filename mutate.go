package bastion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/xraph/bastion/assignment"
	"github.com/xraph/bastion/audit"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/permission"
	"github.com/xraph/bastion/role"
	"github.com/xraph/bastion/store"
)

// principal is the identity a mutation is performed as.
type principal struct {
	id string

	// super is the configured super admin: exempt from hierarchy and lock
	// checks.
	super bool

	// system is the engine itself (bootstrap, catalog seeding). It is never
	// derived from a caller-supplied identity.
	system bool
}

func (e *Engine) caller(callerID string) principal {
	return principal{
		id:    callerID,
		super: e.config.SuperAdminID != "" && callerID == e.config.SuperAdminID,
	}
}

var systemPrincipal = principal{id: audit.SystemActor, system: true}

func (p principal) exempt() bool { return p.super || p.system }

// GetAssignment returns the stored record of actorID, or an empty record
// if the actor has never been assigned anything.
func (e *Engine) GetAssignment(ctx context.Context, actorID string) (*assignment.Assignment, error) {
	if actorID == "" {
		return nil, fmt.Errorf("%w: actor id is required", ErrValidation)
	}
	return e.getAssignment(ctx, actorID)
}

// SetRoles replaces the role set of targetID.
//
// The caller's best role must outrank the target's current best role, and
// the caller must rank at or above every role being added. Removing Dev or
// Manager from a locked record fails with ErrLockedRole. The super admin is
// exempt from all three checks. Each added or removed role is audited
// individually; setting the current set again writes nothing.
func (e *Engine) SetRoles(ctx context.Context, callerID, targetID string, roles []role.Name) error {
	next, err := role.NewSet(roles...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if targetID == "" {
		return fmt.Errorf("%w: target id is required", ErrValidation)
	}
	_, _, err = e.commitRoles(ctx, e.caller(callerID), targetID, roleChange{roles: next})
	return err
}

// RemoveStaff clears both the role set and the denial list of targetID under
// the same rules as SetRoles. It fails with ErrNotFound if the target holds
// no roles.
func (e *Engine) RemoveStaff(ctx context.Context, callerID, targetID string) error {
	if targetID == "" {
		return fmt.Errorf("%w: target id is required", ErrValidation)
	}
	_, _, err := e.commitRoles(ctx, e.caller(callerID), targetID, roleChange{
		roles:       role.Set{},
		clearDenied: true,
		mustExist:   true,
	})
	return err
}

// SetDenied replaces the denial list of targetID. The authority check is
// the one of SetRoles; the target must have a stored record.
func (e *Engine) SetDenied(ctx context.Context, callerID, targetID string, commands []permission.CommandID) error {
	if targetID == "" {
		return fmt.Errorf("%w: target id is required", ErrValidation)
	}
	denied, err := permission.ParseCommandIDs(permission.CommandStrings(commands))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	p := e.caller(callerID)
	var before, after *assignment.Assignment
	err = e.mutateAssignment(ctx, targetID, func(ctx context.Context, cur *assignment.Assignment) (*assignment.Assignment, []*audit.Record, error) {
		before, after = nil, nil
		if cur.Version == 0 {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, targetID)
		}
		if err := e.authorize(ctx, p, cur, nil); err != nil {
			return nil, nil, err
		}
		if slices.Equal(cur.Denied, denied) {
			return nil, nil, nil
		}

		next := cur.Clone()
		next.Denied = slices.Clone(denied)
		rec := e.newRecord(ctx, p, audit.EntityActor, targetID, audit.FieldDenied,
			encodeList(permission.CommandStrings(cur.Denied)), encodeList(permission.CommandStrings(denied)))
		before, after = cur, next
		return next, []*audit.Record{rec}, nil
	})
	if err != nil || after == nil {
		return err
	}

	e.logger.Info("denial list replaced",
		slog.String("target_id", targetID),
		slog.String("changed_by", p.id),
		slog.Int("denied", len(after.Denied)),
	)
	e.plugins.EmitDeniedChanged(ctx, p.id, before, after)
	return nil
}

// ListStaff returns a page of actors holding at least one role, together
// with the total number of matching actors.
func (e *Engine) ListStaff(ctx context.Context, filter *assignment.ListFilter) ([]*assignment.Assignment, int64, error) {
	f := assignment.ListFilter{}
	if filter != nil {
		f = *filter
	}
	f.StaffOnly = true
	if f.Role != "" && !f.Role.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown role %q", ErrValidation, f.Role)
	}

	var (
		staff []*assignment.Assignment
		total int64
	)
	err := e.call(ctx, "list_assignments", func(ctx context.Context) error {
		var err error
		staff, err = e.store.ListAssignments(ctx, &f)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	err = e.call(ctx, "count_assignments", func(ctx context.Context) error {
		var err error
		total, err = e.store.CountAssignments(ctx, &f)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return staff, total, nil
}

// roleChange describes the target state of a role mutation.
type roleChange struct {
	roles       role.Set
	clearDenied bool
	mustExist   bool

	// lock marks the result as bootstrap-provisioned.
	lock bool
}

// commitRoles applies ch to targetID as p. It returns the record before and
// after the change; after is nil when nothing had to change.
func (e *Engine) commitRoles(ctx context.Context, p principal, targetID string, ch roleChange) (before, after *assignment.Assignment, err error) {
	err = e.mutateAssignment(ctx, targetID, func(ctx context.Context, cur *assignment.Assignment) (*assignment.Assignment, []*audit.Record, error) {
		before, after = nil, nil
		if ch.mustExist && !cur.Team() {
			return nil, nil, fmt.Errorf("%w: %s holds no roles", ErrNotFound, targetID)
		}

		added, removed := cur.Roles.Diff(ch.roles)
		strippedTop := slices.ContainsFunc(removed, role.Name.IsTop)
		if cur.Locked && strippedTop && !p.exempt() {
			return nil, nil, fmt.Errorf("%w: %s holds bootstrap-provisioned roles", ErrLockedRole, targetID)
		}
		if err := e.authorize(ctx, p, cur, added); err != nil {
			return nil, nil, err
		}

		next := cur.Clone()
		next.Roles = slices.Clone(ch.roles)
		if ch.clearDenied {
			next.Denied = []permission.CommandID{}
		}
		switch {
		case ch.lock:
			next.Locked = true
		case strippedTop || !next.Roles.HasTop():
			next.Locked = false
		}

		records := e.roleRecords(ctx, p, cur, next, added, removed)
		before = cur
		if len(records) == 0 {
			return nil, nil, nil
		}
		after = next
		return next, records, nil
	})
	if err != nil || after == nil {
		return before, nil, err
	}

	e.logger.Info("roles changed",
		slog.String("target_id", targetID),
		slog.String("changed_by", p.id),
		slog.Any("roles", after.Roles.Strings()),
		slog.Bool("locked", after.Locked),
	)
	e.plugins.EmitRolesChanged(ctx, p.id, before, after)
	if !slices.Equal(before.Denied, after.Denied) {
		e.plugins.EmitDeniedChanged(ctx, p.id, before, after)
	}
	return before, after, nil
}

// authorize checks that p may change cur and hand out every role in added.
func (e *Engine) authorize(ctx context.Context, p principal, cur *assignment.Assignment, added []role.Name) error {
	if p.exempt() {
		return nil
	}
	caller, err := e.getAssignment(ctx, p.id)
	if err != nil {
		return err
	}
	if !role.CanModify(caller.Roles, cur.Roles) {
		return fmt.Errorf("%w: %s may not modify %s", ErrPermission, p.id, cur.ActorID)
	}
	for _, r := range added {
		if !role.CanGrant(caller.Roles, r) {
			return fmt.Errorf("%w: %s may not grant %s", ErrPermission, p.id, r)
		}
	}
	return nil
}

// roleRecords returns one record per structural difference between cur and
// next, in a fixed order.
func (e *Engine) roleRecords(ctx context.Context, p principal, cur, next *assignment.Assignment, added, removed []role.Name) []*audit.Record {
	var records []*audit.Record
	for _, r := range removed {
		records = append(records, e.newRecord(ctx, p, audit.EntityActor, cur.ActorID, audit.FieldRole, string(r), ""))
	}
	for _, r := range added {
		records = append(records, e.newRecord(ctx, p, audit.EntityActor, cur.ActorID, audit.FieldRole, "", string(r)))
	}
	if cur.Team() != next.Team() {
		records = append(records, e.newRecord(ctx, p, audit.EntityActor, cur.ActorID, audit.FieldTeam,
			strconv.FormatBool(cur.Team()), strconv.FormatBool(next.Team())))
	}
	if !slices.Equal(cur.Denied, next.Denied) {
		records = append(records, e.newRecord(ctx, p, audit.EntityActor, cur.ActorID, audit.FieldDenied,
			encodeList(permission.CommandStrings(cur.Denied)), encodeList(permission.CommandStrings(next.Denied))))
	}
	if cur.Locked != next.Locked {
		records = append(records, e.newRecord(ctx, p, audit.EntityActor, cur.ActorID, audit.FieldLocked,
			strconv.FormatBool(cur.Locked), strconv.FormatBool(next.Locked)))
	}
	return records
}

// mutateFunc computes the next state of an assignment. Returning a nil
// assignment means nothing has to change.
type mutateFunc func(ctx context.Context, cur *assignment.Assignment) (*assignment.Assignment, []*audit.Record, error)

// mutateAssignment runs a read-modify-write of targetID's record while
// holding the target's lock, retrying lost compare-and-set races.
func (e *Engine) mutateAssignment(ctx context.Context, targetID string, fn mutateFunc) error {
	unlock, err := e.locker.Lock(ctx, "actor:"+targetID)
	if err != nil {
		return e.infraFailure(ctx, "lock_assignment", err)
	}
	defer unlock()

	return e.retryConflicts(ctx, "commit_assignment "+targetID, func() error {
		cur, err := e.getAssignment(ctx, targetID)
		if err != nil {
			return err
		}
		next, records, err := fn(ctx, cur)
		if err != nil || next == nil {
			return err
		}
		next.ActorID = targetID
		next.Version = cur.Version + 1
		next.UpdatedBy = records[0].ChangedBy
		next.UpdatedAt = records[0].ChangedAt
		err = e.call(ctx, "commit_assignment", func(ctx context.Context) error {
			return e.store.CommitAssignment(ctx, next, records)
		})
		if err != nil {
			return err
		}
		e.refreshFallback(ctx, next)
		return nil
	})
}

// refreshFallback keeps the outage fallback in step with a committed record.
// A trusted operator who no longer holds a top role is dropped from it.
func (e *Engine) refreshFallback(ctx context.Context, a *assignment.Assignment) {
	if e.config.isTrusted(a.ActorID) && a.Roles.HasTop() {
		e.fallback.Remember(ctx, a)
		return
	}
	e.fallback.Forget(ctx, a.ActorID)
}

// retryConflicts runs fn until it stops failing with store.ErrConflict or
// the retry budget is spent.
func (e *Engine) retryConflicts(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := range e.config.MaxCommitRetries {
		err = fn()
		if !errors.Is(err, store.ErrConflict) {
			return err
		}
		e.logger.Debug("commit conflict, retrying",
			slog.String("op", op),
			slog.Int("attempt", attempt+1),
		)
		if ctx.Err() != nil {
			break
		}
	}
	return fmt.Errorf("%w: %s: %w", ErrConflict, op, err)
}

func (e *Engine) newRecord(ctx context.Context, p principal, et audit.EntityType, entityID, field, oldValue, newValue string) *audit.Record {
	return &audit.Record{
		ID:         id.NewAuditID(),
		EntityType: et,
		EntityID:   entityID,
		Field:      field,
		OldValue:   oldValue,
		NewValue:   newValue,
		ChangedBy:  p.id,
		ChangedAt:  e.timestamp(),
		Reason:     reasonFromContext(ctx),
	}
}

// encodeList renders a sorted string set as a JSON array.
func encodeList(items []string) string {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(b)
}
