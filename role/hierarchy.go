package role

import "math"

// Namespace is the category prefix of a command identifier.
type Namespace string

const (
	NamespaceTeam          Namespace = "t"
	NamespaceManagement    Namespace = "m"
	NamespaceDeveloper     Namespace = "d"
	NamespaceModeration    Namespace = "mod"
	NamespaceSupport       Namespace = "sup"
	NamespaceCommunication Namespace = "com"
)

// Namespaces lists every known namespace.
var Namespaces = []Namespace{
	NamespaceTeam, NamespaceManagement, NamespaceDeveloper,
	NamespaceModeration, NamespaceSupport, NamespaceCommunication,
}

// Valid reports whether ns is a known namespace.
func (ns Namespace) Valid() bool {
	for _, n := range Namespaces {
		if n == ns {
			return true
		}
	}
	return false
}

// RankNone is the rank of an empty role set. It outranks nobody.
const RankNone = math.MaxInt

// Rank returns the power of a role; lower is more powerful. Dev and Manager
// share rank 0 and therefore never outrank each other.
func Rank(n Name) int {
	if !n.Valid() {
		return RankNone
	}
	return int(n.Tier())
}

// Best returns the lowest rank held in s, or RankNone when s is empty.
func (s Set) Best() int {
	best := RankNone
	for _, n := range s {
		if r := Rank(n); r < best {
			best = r
		}
	}
	return best
}

var deptNamespace = map[Department]Namespace{
	DeptMod: NamespaceModeration,
	DeptSup: NamespaceSupport,
	DeptCom: NamespaceCommunication,
}

// NamespacesOf returns the namespaces a role is eligible for. Every role is
// eligible for team commands; department roles add their department's
// namespace; Manager adds management and every department; Dev adds all.
func NamespacesOf(n Name) []Namespace {
	switch n {
	case Dev:
		return Namespaces
	case Manager:
		return []Namespace{
			NamespaceTeam, NamespaceManagement,
			NamespaceModeration, NamespaceSupport, NamespaceCommunication,
		}
	}
	if !n.Valid() {
		return nil
	}
	out := []Namespace{NamespaceTeam}
	if ns, ok := deptNamespace[n.Department()]; ok {
		out = append(out, ns)
	}
	return out
}

// EligibleFor reports whether any role in s unlocks ns.
func (s Set) EligibleFor(ns Namespace) bool {
	for _, n := range s {
		for _, allowed := range NamespacesOf(n) {
			if allowed == ns {
				return true
			}
		}
	}
	return false
}

// CanModify reports whether an actor holding actor may change the roles or
// denials of a target holding target. The actor's best rank must be strictly
// better than the target's; an empty actor set can modify nobody.
func CanModify(actor, target Set) bool {
	a := actor.Best()
	if a == RankNone {
		return false
	}
	return a < target.Best()
}

// CanGrant reports whether a caller holding caller may hand out granted.
// The caller needs a role ranked at or above the granted one.
func CanGrant(caller Set, granted Name) bool {
	best := caller.Best()
	return best != RankNone && best <= Rank(granted)
}

// CanEditCatalog reports whether a caller holding caller may change the
// permission set of r: the caller holds r itself or a strictly higher role.
func CanEditCatalog(caller Set, r Name) bool {
	if caller.Has(r) {
		return true
	}
	best := caller.Best()
	return best != RankNone && best < Rank(r)
}
