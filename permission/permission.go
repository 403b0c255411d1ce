// Package permission defines command identifiers and the per-role permission
// catalog: the explicit list of commands each role grants.
package permission

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/xraph/bastion/role"
)

// Set is the catalog entry for one role. Common entries are merged across
// every role an actor holds; scoped entries belong to this role alone.
// Entries are either a full CommandID ("mod.blacklist") or a bare command
// name ("flex") that matches that name in any namespace.
type Set struct {
	Role      role.Name `json:"role" db:"role"`
	Common    []string  `json:"common" db:"common"`
	Scoped    []string  `json:"scoped" db:"scoped"`
	Version   int64     `json:"version" db:"version"`
	UpdatedBy string    `json:"updated_by,omitempty" db:"updated_by"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Empty returns the implicit set of a role with nothing stored.
func Empty(r role.Name) *Set {
	return &Set{Role: r, Common: []string{}, Scoped: []string{}}
}

// Grants reports whether the set lists cmd in either subset.
func (s *Set) Grants(cmd CommandID) bool {
	if s == nil {
		return false
	}
	return matchAny(s.Common, cmd) || matchAny(s.Scoped, cmd)
}

// Clone returns a deep copy.
func (s *Set) Clone() *Set {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Common = slices.Clone(s.Common)
	cp.Scoped = slices.Clone(s.Scoped)
	return &cp
}

// NormalizeEntries validates catalog entries and returns them sorted and
// de-duplicated. A nil input yields an empty, non-nil slice.
func NormalizeEntries(entries []string) ([]string, error) {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if err := validateEntry(e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

func validateEntry(e string) error {
	if validName(e) {
		return nil
	}
	if ns, ok := strings.CutSuffix(e, ".*"); ok {
		if !role.Namespace(ns).Valid() {
			return fmt.Errorf("catalog entry %q: unknown namespace %q", e, ns)
		}
		return nil
	}
	if _, err := ParseCommandID(e); err != nil {
		return fmt.Errorf("catalog entry %q: %w", e, err)
	}
	return nil
}

// ListFilter restricts catalog listings.
type ListFilter struct {
	Roles []role.Name `json:"roles,omitempty"`
}
