package bastion

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/xraph/bastion/audit"
	"github.com/xraph/bastion/permission"
	"github.com/xraph/bastion/role"
)

// Scenario D.
func TestBootstrapSyncIdempotent(t *testing.T) {
	ctx := context.Background()
	rec := &recordingPlugin{}
	eng, _ := newTestEngine(t, WithPlugin(rec))

	report, err := eng.BootstrapSync(ctx, []string{"9", "9", "", "10"})
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Granted) != 2 || len(report.Unchanged) != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	first := auditCount(t, eng)
	// Per operator: two role records, team and locked.
	if first != 8 {
		t.Fatalf("expected 8 records, got %d", first)
	}

	records, _ := eng.ListAudit(ctx, &audit.QueryFilter{EntityID: "9"})
	for _, r := range records {
		if r.ChangedBy != audit.SystemActor {
			t.Fatalf("expected system actor, got %q", r.ChangedBy)
		}
		if !strings.HasPrefix(r.Reason, "bootstrap boot_") {
			t.Fatalf("expected bootstrap reason, got %q", r.Reason)
		}
	}

	report, err = eng.BootstrapSync(ctx, []string{"9", "10"})
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Granted) != 0 || len(report.Unchanged) != 2 {
		t.Fatalf("second pass should change nothing: %+v", report)
	}
	if auditCount(t, eng) != first {
		t.Fatal("second bootstrap pass wrote audit records")
	}

	a, _ := eng.GetAssignment(ctx, "9")
	if !a.Roles.Equal(role.MustSet(role.Manager, role.Dev)) || !a.Locked {
		t.Fatalf("unexpected trusted operator record %+v", a)
	}
	if rec.count("bootstrap") != 2 {
		t.Fatalf("expected 2 bootstrap hooks, got %d", rec.count("bootstrap"))
	}
}

func TestBootstrapSyncReplacesOtherRoles(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)
	give(t, eng, "9", role.Moderator, role.Manager)

	if _, err := eng.BootstrapSync(ctx, []string{"9"}); err != nil {
		t.Fatal(err)
	}
	a, _ := eng.GetAssignment(ctx, "9")
	if !a.Roles.Equal(role.MustSet(role.Dev, role.Manager)) || !a.Locked {
		t.Fatalf("expected exactly {Dev, Manager} locked, got %+v", a)
	}
}

// Scenario E.
func TestLockedRoleProtection(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)
	give(t, eng, "mgr", role.Manager)
	if _, err := eng.BootstrapSync(ctx, []string{"9"}); err != nil {
		t.Fatal(err)
	}

	err := eng.SetRoles(ctx, "mgr", "9", []role.Name{role.Manager})
	if !errors.Is(err, ErrLockedRole) {
		t.Fatalf("expected ErrLockedRole, got %v", err)
	}
	if err := eng.RemoveStaff(ctx, "mgr", "9"); !errors.Is(err, ErrLockedRole) {
		t.Fatalf("expected ErrLockedRole from RemoveStaff, got %v", err)
	}

	if err := eng.SetRoles(ctx, superAdmin, "9", []role.Name{role.Manager}); err != nil {
		t.Fatalf("super admin must be able to strip Dev: %v", err)
	}
	a, _ := eng.GetAssignment(ctx, "9")
	if !a.Roles.Equal(role.MustSet(role.Manager)) || a.Locked {
		t.Fatalf("expected {Manager} unlocked, got %+v", a)
	}

	// A fresh bootstrap pass restores and re-locks.
	if _, err := eng.BootstrapSync(ctx, []string{"9"}); err != nil {
		t.Fatal(err)
	}
	a, _ = eng.GetAssignment(ctx, "9")
	if !a.Roles.Equal(role.MustSet(role.Dev, role.Manager)) || !a.Locked {
		t.Fatalf("expected re-provisioned record, got %+v", a)
	}
}

func TestStartBootstrapsAndFallback(t *testing.T) {
	ctx := context.Background()
	eng, s := newTestEngine(t, WithConfig(Config{
		SuperAdminID:     superAdmin,
		TrustedOperators: []string{"9"},
	}))
	if err := eng.Start(ctx); err != nil {
		t.Fatal(err)
	}
	give(t, eng, "20", role.Manager)

	s.SetFailure(errors.New("connection reset"))

	res, err := eng.Check(ctx, "9", "mod.blacklist")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Allowed {
		t.Fatalf("trusted operator must keep access during an outage, got %s", res.Decision)
	}
	res, _ = eng.Check(ctx, "20", "mod.blacklist")
	if res.Decision != DecisionDenyInfraFailure {
		t.Fatalf("untrusted manager must fail closed, got %s", res.Decision)
	}
}

func TestBootstrapSyncReportsFailures(t *testing.T) {
	ctx := context.Background()
	eng, s := newTestEngine(t)
	s.SetFailure(errors.New("down"))

	report, err := eng.BootstrapSync(ctx, []string{"9", "10"})
	if !errors.Is(err, ErrInfraFailure) {
		t.Fatalf("expected ErrInfraFailure, got %v", err)
	}
	if len(report.Failed) != 2 {
		t.Fatalf("expected both operators to fail, got %+v", report.Failed)
	}
}

func TestFallbackFollowsCommittedChanges(t *testing.T) {
	ctx := context.Background()
	eng, s := newTestEngine(t, WithConfig(Config{
		SuperAdminID:     superAdmin,
		TrustedOperators: []string{"9", "10"},
	}))
	if err := eng.Start(ctx); err != nil {
		t.Fatal(err)
	}

	deny := []permission.CommandID{permission.MustParseCommandID("mod.blacklist")}
	if err := eng.SetDenied(ctx, superAdmin, "9", deny); err != nil {
		t.Fatal(err)
	}
	if err := eng.RemoveStaff(ctx, superAdmin, "10"); err != nil {
		t.Fatal(err)
	}

	s.SetFailure(errors.New("connection reset"))

	res, err := eng.Check(ctx, "9", "mod.blacklist")
	if err != nil {
		t.Fatal(err)
	}
	if res.Allowed || res.Decision != DecisionDenyExplicit {
		t.Fatalf("committed denial must hold during an outage, got %s", res.Decision)
	}
	res, _ = eng.Check(ctx, "9", "mod.unblacklist")
	if !res.Allowed {
		t.Fatalf("trusted operator keeps other commands during an outage, got %s", res.Decision)
	}

	res, _ = eng.Check(ctx, "10", "d.shutdown")
	if res.Allowed || res.Decision != DecisionDenyInfraFailure {
		t.Fatalf("removed operator must fail closed, got %s", res.Decision)
	}
}
