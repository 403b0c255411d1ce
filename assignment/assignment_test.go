package assignment

import (
	"testing"

	"github.com/xraph/bastion/permission"
	"github.com/xraph/bastion/role"
)

func TestTeamDerivedFromRoles(t *testing.T) {
	a := Empty("u1")
	if a.Team() {
		t.Fatal("empty assignment must not be team")
	}
	a.Roles = role.MustSet(role.Moderator)
	if !a.Team() {
		t.Fatal("assignment with a role must be team")
	}
	var nilA *Assignment
	if nilA.Team() {
		t.Fatal("nil assignment must not be team")
	}
}

func TestIsDenied(t *testing.T) {
	a := Empty("u1")
	a.Denied = []permission.CommandID{"mod.unblacklist"}
	if !a.IsDenied("mod.unblacklist") {
		t.Error("expected denied")
	}
	if a.IsDenied("mod.blacklist") {
		t.Error("unexpected deny")
	}
}

func TestClone(t *testing.T) {
	a := &Assignment{ActorID: "u1", Roles: role.MustSet(role.Support), Denied: []permission.CommandID{"sup.ticket_close"}}
	cp := a.Clone()
	cp.Roles[0] = role.Moderator
	cp.Denied[0] = "sup.ticket_view"
	if a.Roles[0] != role.Support || a.Denied[0] != "sup.ticket_close" {
		t.Fatal("clone must not share slices")
	}
}
