package bastion

import (
	"testing"

	"github.com/xraph/bastion/assignment"
	"github.com/xraph/bastion/permission"
	"github.com/xraph/bastion/role"
)

const superAdmin = "1000"

func snapshotWith(assignments ...*assignment.Assignment) *Snapshot {
	snap := &Snapshot{
		Version:      7,
		SuperAdminID: superAdmin,
		Assignments:  make(map[string]*assignment.Assignment),
		Catalog:      make(map[role.Name]*permission.Set),
	}
	for _, a := range assignments {
		snap.Assignments[a.ActorID] = a
	}
	return snap
}

func holder(actorID string, roles ...role.Name) *assignment.Assignment {
	a := assignment.Empty(actorID)
	a.Roles = role.MustSet(roles...)
	return a
}

func grant(snap *Snapshot, r role.Name, common, scoped []string) {
	snap.Catalog[r] = &permission.Set{Role: r, Common: common, Scoped: scoped, Version: 1}
}

func cmd(s string) permission.CommandID { return permission.MustParseCommandID(s) }

func TestResolveNoRolesMissingRole(t *testing.T) {
	snap := snapshotWith()
	for _, c := range []string{"mod.blacklist", "sup.ticket_close", "m.rank", "d.eval"} {
		res := Resolve(snap, "42", cmd(c))
		if res.Allowed || res.Decision != DecisionDenyMissingRole {
			t.Fatalf("%s: expected deny_missing_role, got %s", c, res.Decision)
		}
	}
	if res := Resolve(snap, "42", cmd("mod.blacklist")); res.SnapshotVersion != 7 {
		t.Fatalf("expected snapshot version 7, got %d", res.SnapshotVersion)
	}
}

func TestResolveSuperAdminBypass(t *testing.T) {
	a := holder(superAdmin)
	a.Denied = []permission.CommandID{cmd("mod.blacklist")}
	snap := snapshotWith(a)

	for _, c := range []string{"mod.blacklist", "d.eval", "m.rank", "t.flex"} {
		res := Resolve(snap, superAdmin, cmd(c))
		if !res.Allowed {
			t.Fatalf("%s: super admin must be allowed, got %s", c, res.Decision)
		}
	}

	// Bypass holds while degraded too.
	snap.Degraded = true
	if !Resolve(snap, superAdmin, cmd("mod.blacklist")).Allowed {
		t.Fatal("super admin must be allowed on a degraded snapshot")
	}
}

func TestResolveEmptySuperAdminDisablesBypass(t *testing.T) {
	snap := snapshotWith()
	snap.SuperAdminID = ""
	if Resolve(snap, "", cmd("t.flex")).Allowed {
		t.Fatal("empty actor must not match an unset super admin")
	}
}

// Scenario A.
func TestResolveManagerAllowed(t *testing.T) {
	snap := snapshotWith(holder("1", role.Manager))
	res := Resolve(snap, "1", cmd("mod.blacklist"))
	if !res.Allowed || res.GrantedBy != role.Manager {
		t.Fatalf("expected allow via Manager, got %s by %q", res.Decision, res.GrantedBy)
	}
}

func TestResolveTopTierSubjectToDenialList(t *testing.T) {
	a := holder("1", role.Dev)
	a.Denied = []permission.CommandID{cmd("d.eval")}
	snap := snapshotWith(a)

	if res := Resolve(snap, "1", cmd("d.eval")); res.Decision != DecisionDenyExplicit {
		t.Fatalf("expected deny_explicit, got %s", res.Decision)
	}
	if res := Resolve(snap, "1", cmd("d.reload")); !res.Allowed || res.GrantedBy != role.Dev {
		t.Fatalf("expected allow via Dev, got %s", res.Decision)
	}
}

// Scenario B.
func TestResolveNamespaceEligibilityIsNotAGrant(t *testing.T) {
	snap := snapshotWith(holder("2", role.SupervisorMod))
	grant(snap, role.SupervisorMod, []string{"flex", "invite"}, nil)

	res := Resolve(snap, "2", cmd("mod.blacklist"))
	if res.Decision != DecisionDenyNotGranted {
		t.Fatalf("expected deny_not_granted, got %s", res.Decision)
	}
	if res := Resolve(snap, "2", cmd("t.flex")); !res.Allowed || res.GrantedBy != role.SupervisorMod {
		t.Fatalf("expected bare entry to grant t.flex, got %s", res.Decision)
	}
}

// Scenario C.
func TestResolveExplicitDenial(t *testing.T) {
	a := holder("3", role.Moderator)
	a.Denied = []permission.CommandID{cmd("mod.unblacklist")}
	snap := snapshotWith(a)
	grant(snap, role.Moderator, nil, []string{"mod.blacklist", "mod.unblacklist"})

	if res := Resolve(snap, "3", cmd("mod.unblacklist")); res.Decision != DecisionDenyExplicit {
		t.Fatalf("expected deny_explicit, got %s", res.Decision)
	}
	if res := Resolve(snap, "3", cmd("mod.blacklist")); !res.Allowed {
		t.Fatalf("expected allow, got %s", res.Decision)
	}
}

func TestResolveNamespaceGate(t *testing.T) {
	snap := snapshotWith(holder("4", role.Support))
	// A grant outside the role's namespaces never applies.
	grant(snap, role.Support, nil, []string{"mod.blacklist", "sup.ticket_close"})

	if res := Resolve(snap, "4", cmd("mod.blacklist")); res.Decision != DecisionDenyMissingRole {
		t.Fatalf("expected deny_missing_role, got %s", res.Decision)
	}
	if res := Resolve(snap, "4", cmd("sup.ticket_close")); !res.Allowed {
		t.Fatalf("expected allow, got %s", res.Decision)
	}
	if res := Resolve(snap, "4", cmd("m.rank")); res.Decision != DecisionDenyMissingRole {
		t.Fatalf("support must not reach the management namespace, got %s", res.Decision)
	}
}

func TestResolveUnionAcrossRoles(t *testing.T) {
	snap := snapshotWith(holder("5", role.Moderator, role.Support))
	grant(snap, role.Moderator, []string{"flex"}, []string{"mod.blacklist"})
	grant(snap, role.Support, nil, []string{"sup.*"})

	for _, c := range []string{"t.flex", "mod.blacklist", "sup.ticket_view"} {
		if res := Resolve(snap, "5", cmd(c)); !res.Allowed {
			t.Fatalf("%s: expected allow, got %s", c, res.Decision)
		}
	}
	if res := Resolve(snap, "5", cmd("com.announce")); res.Decision != DecisionDenyMissingRole {
		t.Fatalf("expected deny_missing_role, got %s", res.Decision)
	}
}

func TestResolveDegradedFailsClosed(t *testing.T) {
	trusted := holder("9", role.Dev, role.Manager)
	trusted.Denied = []permission.CommandID{cmd("d.eval")}

	snap := snapshotWith()
	snap.Degraded = true
	snap.Trusted = map[string]*assignment.Assignment{
		"9":  trusted,
		"10": holder("10", role.Moderator),
	}

	if res := Resolve(snap, "42", cmd("t.flex")); res.Decision != DecisionDenyInfraFailure {
		t.Fatalf("expected deny_infra_failure, got %s", res.Decision)
	}
	if res := Resolve(snap, "10", cmd("mod.blacklist")); res.Decision != DecisionDenyInfraFailure {
		t.Fatalf("non top tier fallback must still fail closed, got %s", res.Decision)
	}
	if res := Resolve(snap, "9", cmd("mod.blacklist")); !res.Allowed {
		t.Fatalf("trusted operator must be allowed, got %s", res.Decision)
	}
	if res := Resolve(snap, "9", cmd("d.eval")); res.Decision != DecisionDenyExplicit {
		t.Fatalf("trusted operator keeps its denial list, got %s", res.Decision)
	}
	if res := Resolve(nil, "9", cmd("t.flex")); res.Decision != DecisionDenyInfraFailure {
		t.Fatalf("nil snapshot must fail closed, got %s", res.Decision)
	}
}

func TestResolveDeterministic(t *testing.T) {
	a := holder("6", role.Moderator)
	snap := snapshotWith(a)
	grant(snap, role.Moderator, nil, []string{"mod.*"})

	first := *Resolve(snap, "6", cmd("mod.userinfo"))
	for range 50 {
		if got := *Resolve(snap, "6", cmd("mod.userinfo")); got != first {
			t.Fatalf("resolve not deterministic: %+v vs %+v", got, first)
		}
	}
}
