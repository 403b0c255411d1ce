// Package role defines the closed set of staff role names and the static
// hierarchy that orders them. Nothing in this package performs I/O.
package role

import (
	"fmt"
	"slices"
	"strings"
)

// Name is a staff role label. Only the constants below are valid.
type Name string

const (
	Dev           Name = "Dev"
	Manager       Name = "Manager"
	SupervisorMod Name = "Supervisor_Mod"
	SupervisorSup Name = "Supervisor_Sup"
	SupervisorCom Name = "Supervisor_Com"
	Moderator     Name = "Moderator"
	Support       Name = "Support"
	Communication Name = "Communication"
)

// All lists every role from most to least powerful.
var All = []Name{
	Dev, Manager,
	SupervisorMod, SupervisorSup, SupervisorCom,
	Moderator, Support, Communication,
}

// Department is the organisational axis of a role.
type Department string

const (
	DeptNone Department = ""
	DeptMod  Department = "mod"
	DeptSup  Department = "sup"
	DeptCom  Department = "com"
)

// Tier is the power axis of a role.
type Tier int

const (
	TierTop Tier = iota
	TierSupervisor
	TierStaff
)

type info struct {
	tier Tier
	dept Department
}

var registry = map[Name]info{
	Dev:           {TierTop, DeptNone},
	Manager:       {TierTop, DeptNone},
	SupervisorMod: {TierSupervisor, DeptMod},
	SupervisorSup: {TierSupervisor, DeptSup},
	SupervisorCom: {TierSupervisor, DeptCom},
	Moderator:     {TierStaff, DeptMod},
	Support:       {TierStaff, DeptSup},
	Communication: {TierStaff, DeptCom},
}

// Valid reports whether n is a known role.
func (n Name) Valid() bool {
	_, ok := registry[n]
	return ok
}

// Tier returns the role tier. Unknown roles report TierStaff.
func (n Name) Tier() Tier {
	if i, ok := registry[n]; ok {
		return i.tier
	}
	return TierStaff
}

// Department returns the department the role belongs to.
func (n Name) Department() Department { return registry[n].dept }

// IsTop reports whether the role is Dev or Manager.
func (n Name) IsTop() bool { return n.Valid() && n.Tier() == TierTop }

func (n Name) String() string { return string(n) }

// Parse converts s into a Name. Matching is case-insensitive so that
// "supervisor_mod" and "Supervisor_Mod" resolve to the same role.
func Parse(s string) (Name, error) {
	for _, n := range All {
		if strings.EqualFold(string(n), s) {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Set is a sorted, duplicate-free collection of roles.
type Set []Name

// NewSet validates names and returns them as a normalized Set.
func NewSet(names ...Name) (Set, error) {
	out := make(Set, 0, len(names))
	for _, n := range names {
		if !n.Valid() {
			return nil, fmt.Errorf("unknown role %q", n)
		}
		out = append(out, n)
	}
	return out.normalize(), nil
}

// MustSet is NewSet that panics on an unknown role.
func MustSet(names ...Name) Set {
	s, err := NewSet(names...)
	if err != nil {
		panic(err)
	}
	return s
}

// ParseSet parses raw role strings into a Set.
func ParseSet(raw []string) (Set, error) {
	names := make([]Name, 0, len(raw))
	for _, r := range raw {
		n, err := Parse(r)
		if err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return NewSet(names...)
}

func (s Set) normalize() Set {
	out := slices.Clone(s)
	slices.SortFunc(out, func(a, b Name) int { return strings.Compare(string(a), string(b)) })
	return slices.Compact(out)
}

// Has reports whether n is in the set.
func (s Set) Has(n Name) bool { return slices.Contains(s, n) }

// HasTop reports whether the set holds Dev or Manager.
func (s Set) HasTop() bool { return s.Has(Dev) || s.Has(Manager) }

// Equal reports whether both sets hold the same roles.
func (s Set) Equal(o Set) bool { return slices.Equal(s.normalize(), o.normalize()) }

// Diff returns the roles added and removed when moving from s to next.
func (s Set) Diff(next Set) (added, removed []Name) {
	for _, n := range next {
		if !s.Has(n) {
			added = append(added, n)
		}
	}
	for _, n := range s {
		if !next.Has(n) {
			removed = append(removed, n)
		}
	}
	return added, removed
}

// Strings returns the role names as plain strings.
func (s Set) Strings() []string {
	out := make([]string, len(s))
	for i, n := range s {
		out[i] = string(n)
	}
	return out
}
