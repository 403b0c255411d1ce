package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"

	"github.com/xraph/bastion/assignment"
	"github.com/xraph/bastion/audit"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/permission"
	"github.com/xraph/bastion/role"
	"github.com/xraph/bastion/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	drv := sqlitedriver.New()
	if err := drv.Open(ctx, DSN(filepath.Join(t.TempDir(), "bastion.db"))); err != nil {
		t.Fatal(err)
	}
	db, err := grove.Open(drv)
	if err != nil {
		t.Fatal(err)
	}
	s := New(db)
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// Migrations are idempotent.
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	return s
}

func rec(entity string) *audit.Record {
	return &audit.Record{
		ID:         id.NewAuditID(),
		EntityType: audit.EntityActor,
		EntityID:   entity,
		Field:      audit.FieldRole,
		NewValue:   "Moderator",
		ChangedBy:  "boss",
		ChangedAt:  time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestDSN(t *testing.T) {
	cases := map[string]string{
		"/tmp/b.db":                           "/tmp/b.db?_pragma=busy_timeout(5000)",
		"file:/tmp/b.db?mode=rwc":             "file:/tmp/b.db?mode=rwc&_pragma=busy_timeout(5000)",
		"/tmp/b.db?_pragma=busy_timeout(100)": "/tmp/b.db?_pragma=busy_timeout(100)",
	}
	for in, want := range cases {
		if got := DSN(in); got != want {
			t.Errorf("DSN(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAssignmentCommitAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.GetAssignment(ctx, "u1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	a := &assignment.Assignment{
		ActorID:   "u1",
		Roles:     role.MustSet(role.Moderator, role.Support),
		Denied:    []permission.CommandID{permission.MustParseCommandID("mod.blacklist")},
		Version:   1,
		UpdatedBy: "boss",
		UpdatedAt: now,
	}
	if err := s.CommitAssignment(ctx, a, []*audit.Record{rec("u1")}); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetAssignment(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Roles.Equal(a.Roles) || got.Version != 1 || got.UpdatedBy != "boss" {
		t.Fatalf("unexpected assignment %+v", got)
	}
	if len(got.Denied) != 1 || got.Denied[0] != "mod.blacklist" {
		t.Fatalf("unexpected denial list %v", got.Denied)
	}
	if !got.UpdatedAt.Equal(now) {
		t.Fatalf("updated_at = %v, want %v", got.UpdatedAt, now)
	}

	next := got.Clone()
	next.Roles = role.MustSet(role.Moderator)
	next.Locked = true
	next.Version = 2
	if err := s.CommitAssignment(ctx, next, []*audit.Record{rec("u1")}); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetAssignment(ctx, "u1")
	if !got.Roles.Equal(role.MustSet(role.Moderator)) || !got.Locked || got.Version != 2 {
		t.Fatalf("update not applied: %+v", got)
	}
}

func TestAssignmentCommitConflict(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := &assignment.Assignment{ActorID: "u1", Roles: role.MustSet(role.Support), Version: 1}
	if err := s.CommitAssignment(ctx, a, nil); err != nil {
		t.Fatal(err)
	}

	// A second first write loses.
	stale := &assignment.Assignment{ActorID: "u1", Roles: role.MustSet(role.Moderator), Version: 1}
	if err := s.CommitAssignment(ctx, stale, []*audit.Record{rec("u1")}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	// So does an update from a version that is not current.
	skipped := &assignment.Assignment{ActorID: "u1", Roles: role.MustSet(role.Moderator), Version: 3}
	if err := s.CommitAssignment(ctx, skipped, []*audit.Record{rec("u1")}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	// Failed commits must not append audit records.
	if _, err := s.LastAudit(ctx); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected empty audit log, got %v", err)
	}
	got, _ := s.GetAssignment(ctx, "u1")
	if !got.Roles.Equal(role.MustSet(role.Support)) {
		t.Fatalf("conflicting commit changed the record: %+v", got)
	}
}

func TestListAssignments(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i, r := range []role.Set{role.MustSet(role.Moderator), {}, role.MustSet(role.Support, role.Moderator)} {
		a := &assignment.Assignment{ActorID: string(rune('a' + i)), Roles: r, Version: 1}
		if err := s.CommitAssignment(ctx, a, nil); err != nil {
			t.Fatal(err)
		}
	}

	staff, err := s.ListAssignments(ctx, &assignment.ListFilter{StaffOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(staff) != 2 || staff[0].ActorID != "a" || staff[1].ActorID != "c" {
		t.Fatalf("unexpected staff list %v", staff)
	}

	support, err := s.ListAssignments(ctx, &assignment.ListFilter{Role: role.Support})
	if err != nil {
		t.Fatal(err)
	}
	if len(support) != 1 || support[0].ActorID != "c" {
		t.Fatalf("unexpected role filter result %v", support)
	}

	page, _ := s.ListAssignments(ctx, &assignment.ListFilter{Limit: 1, Offset: 1})
	if len(page) != 1 || page[0].ActorID != "b" {
		t.Fatalf("unexpected page %v", page)
	}

	count, err := s.CountAssignments(ctx, &assignment.ListFilter{StaffOnly: true})
	if err != nil || count != 2 {
		t.Fatalf("expected count 2, got %d, %v", count, err)
	}
	count, _ = s.CountAssignments(ctx, &assignment.ListFilter{Role: role.Moderator})
	if count != 2 {
		t.Fatalf("expected 2 moderators, got %d", count)
	}
}

func TestPermissionSetCommit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	ps := &permission.Set{Role: role.Moderator, Common: []string{"flex"}, Scoped: []string{"mod.blacklist"}, Version: 1}
	if err := s.CommitRolePermissionSet(ctx, ps, []*audit.Record{rec("Moderator")}); err != nil {
		t.Fatal(err)
	}
	if err := s.CommitRolePermissionSet(ctx, ps, nil); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict on replay, got %v", err)
	}

	got, err := s.GetRolePermissionSet(ctx, role.Moderator)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Common) != 1 || got.Scoped[0] != "mod.blacklist" || got.Version != 1 {
		t.Fatalf("unexpected set %+v", got)
	}
	if _, err := s.GetRolePermissionSet(ctx, role.Support); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	list, _ := s.ListRolePermissionSets(ctx, &permission.ListFilter{Roles: []role.Name{role.Support}})
	if len(list) != 0 {
		t.Fatalf("expected empty filtered list, got %d", len(list))
	}
	list, _ = s.ListRolePermissionSets(ctx, nil)
	if len(list) != 1 {
		t.Fatalf("expected 1 set, got %d", len(list))
	}
}

func TestAuditChainAndPaging(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i := range 5 {
		a := &assignment.Assignment{ActorID: "u1", Version: int64(i + 1)}
		if err := s.CommitAssignment(ctx, a, []*audit.Record{rec("u1"), rec("u2")}); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.ListAudit(ctx, &audit.QueryFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 10 {
		t.Fatalf("expected 10 records, got %d", len(all))
	}
	if _, _, err := audit.Verify(all, 0, ""); err != nil {
		t.Fatalf("chain should verify: %v", err)
	}

	page1, _ := s.ListAudit(ctx, &audit.QueryFilter{EntityID: "u1", Limit: 3})
	if len(page1) != 3 {
		t.Fatalf("expected 3, got %d", len(page1))
	}
	page2, _ := s.ListAudit(ctx, &audit.QueryFilter{EntityID: "u1", Limit: 3, AfterSeq: page1[2].Seq})
	if len(page2) != 2 {
		t.Fatalf("expected 2, got %d", len(page2))
	}
	if page2[0].Seq <= page1[2].Seq {
		t.Fatal("pages must be in ascending order")
	}

	head, err := s.LastAudit(ctx)
	if err != nil || head.Seq != 10 || head.Hash != all[9].Hash {
		t.Fatalf("unexpected head %+v, %v", head, err)
	}
}

func TestConcurrentCommitsQueue(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			actor := fmt.Sprintf("u%d", i)
			a := &assignment.Assignment{ActorID: actor, Roles: role.MustSet(role.Support), Version: 1}
			errs[i] = s.CommitAssignment(ctx, a, []*audit.Record{rec(actor)})
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("commit %d: %v", i, err)
		}
	}

	all, _ := s.ListAudit(ctx, &audit.QueryFilter{})
	if len(all) != n {
		t.Fatalf("expected %d records, got %d", n, len(all))
	}
	if _, _, err := audit.Verify(all, 0, ""); err != nil {
		t.Fatalf("chain should verify after concurrent commits: %v", err)
	}
}
