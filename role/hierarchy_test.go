package role

import "testing"

func TestRankOrdering(t *testing.T) {
	if Rank(Dev) != Rank(Manager) {
		t.Fatalf("Dev and Manager must share a rank, got %d and %d", Rank(Dev), Rank(Manager))
	}
	if !(Rank(Manager) < Rank(SupervisorMod) && Rank(SupervisorMod) < Rank(Moderator)) {
		t.Fatal("expected top < supervisor < staff")
	}
	if Rank(Name("Janitor")) != RankNone {
		t.Fatal("unknown role should have RankNone")
	}
	if (Set{}).Best() != RankNone {
		t.Fatal("empty set should have RankNone")
	}
}

func TestCanModify(t *testing.T) {
	tests := []struct {
		name   string
		actor  Set
		target Set
		want   bool
	}{
		{"manager over supervisor", MustSet(Manager), MustSet(SupervisorMod), true},
		{"supervisor over staff", MustSet(SupervisorMod), MustSet(Moderator), true},
		{"supervisor over other dept staff", MustSet(SupervisorMod), MustSet(Support), true},
		{"staff over supervisor", MustSet(Moderator), MustSet(SupervisorMod), false},
		{"dev vs manager", MustSet(Dev), MustSet(Manager), false},
		{"manager vs dev", MustSet(Manager), MustSet(Dev), false},
		{"same supervisor", MustSet(SupervisorMod), MustSet(SupervisorMod), false},
		{"peer supervisors", MustSet(SupervisorMod), MustSet(SupervisorCom), false},
		{"empty actor", Set{}, Set{}, false},
		{"empty actor vs staff", Set{}, MustSet(Moderator), false},
		{"staff over non-staff", MustSet(Moderator), Set{}, true},
		{"best role counts", MustSet(Moderator, Manager), MustSet(SupervisorSup), true},
		{"target best role counts", MustSet(SupervisorMod), MustSet(Moderator, Manager), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanModify(tt.actor, tt.target); got != tt.want {
				t.Errorf("CanModify(%v, %v) = %v, want %v", tt.actor, tt.target, got, tt.want)
			}
		})
	}
}

func TestSupervisorModSymmetry(t *testing.T) {
	a, b := MustSet(SupervisorMod), MustSet(SupervisorMod)
	if CanModify(a, b) || CanModify(b, a) {
		t.Fatal("two Supervisor_Mod holders must not modify each other")
	}
}

func TestCanGrant(t *testing.T) {
	if !CanGrant(MustSet(Manager), Dev) {
		t.Error("manager should be able to grant top-tier role (same rank)")
	}
	if !CanGrant(MustSet(SupervisorMod), Moderator) {
		t.Error("supervisor should grant staff")
	}
	if CanGrant(MustSet(SupervisorMod), Manager) {
		t.Error("supervisor must not grant manager")
	}
	if CanGrant(Set{}, Moderator) {
		t.Error("empty set must not grant")
	}
}

func TestCanEditCatalog(t *testing.T) {
	if !CanEditCatalog(MustSet(Moderator), Moderator) {
		t.Error("holder may edit own role")
	}
	if !CanEditCatalog(MustSet(SupervisorMod), Moderator) {
		t.Error("higher role may edit lower")
	}
	if CanEditCatalog(MustSet(SupervisorMod), SupervisorSup) {
		t.Error("peer supervisor must not edit another supervisor role")
	}
	if CanEditCatalog(MustSet(Moderator), Support) {
		t.Error("staff must not edit other staff role")
	}
}

func TestNamespaces(t *testing.T) {
	tests := []struct {
		set  Set
		ns   Namespace
		want bool
	}{
		{MustSet(Moderator), NamespaceModeration, true},
		{MustSet(Moderator), NamespaceTeam, true},
		{MustSet(Moderator), NamespaceSupport, false},
		{MustSet(SupervisorSup), NamespaceSupport, true},
		{MustSet(Communication), NamespaceCommunication, true},
		{MustSet(Manager), NamespaceManagement, true},
		{MustSet(Manager), NamespaceDeveloper, false},
		{MustSet(Dev), NamespaceDeveloper, true},
		{Set{}, NamespaceTeam, false},
	}
	for _, tt := range tests {
		if got := tt.set.EligibleFor(tt.ns); got != tt.want {
			t.Errorf("%v.EligibleFor(%q) = %v, want %v", tt.set, tt.ns, got, tt.want)
		}
	}
}

func TestSetNormalizeAndDiff(t *testing.T) {
	s, err := NewSet(Moderator, Dev, Moderator)
	if err != nil {
		t.Fatal(err)
	}
	if len(s) != 2 || s[0] != Dev || s[1] != Moderator {
		t.Fatalf("unexpected normalized set %v", s)
	}
	if !s.Equal(MustSet(Moderator, Dev)) {
		t.Fatal("order must not matter")
	}

	added, removed := s.Diff(MustSet(Dev, Support))
	if len(added) != 1 || added[0] != Support {
		t.Errorf("added = %v", added)
	}
	if len(removed) != 1 || removed[0] != Moderator {
		t.Errorf("removed = %v", removed)
	}

	if _, err := NewSet(Name("Janitor")); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestParse(t *testing.T) {
	n, err := Parse("supervisor_mod")
	if err != nil || n != SupervisorMod {
		t.Fatalf("Parse = %q, %v", n, err)
	}
	if _, err := Parse("admin"); err == nil {
		t.Fatal("expected error")
	}
	set, err := ParseSet([]string{"Manager", "dev"})
	if err != nil || !set.Equal(MustSet(Dev, Manager)) {
		t.Fatalf("ParseSet = %v, %v", set, err)
	}
}
