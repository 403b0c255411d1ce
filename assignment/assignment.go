// Package assignment defines the per-actor staff record: the roles an actor
// holds and the commands explicitly denied to them.
package assignment

import (
	"slices"
	"time"

	"github.com/xraph/bastion/permission"
	"github.com/xraph/bastion/role"
)

// Assignment is the persisted authorization state of one actor.
//
// Version is a compare-and-set counter: zero means the record has never
// been stored, and every commit increments it by one.
type Assignment struct {
	ActorID   string                 `json:"actor_id" db:"actor_id"`
	Roles     role.Set               `json:"roles" db:"roles"`
	Denied    []permission.CommandID `json:"denied" db:"denied"`
	Locked    bool                   `json:"locked" db:"locked"`
	Version   int64                  `json:"version" db:"version"`
	UpdatedBy string                 `json:"updated_by,omitempty" db:"updated_by"`
	UpdatedAt time.Time              `json:"updated_at" db:"updated_at"`
}

// Empty returns the implicit record of an actor with nothing stored.
func Empty(actorID string) *Assignment {
	return &Assignment{ActorID: actorID, Roles: role.Set{}, Denied: []permission.CommandID{}}
}

// Team reports whether the actor is staff. It is derived from Roles and
// cannot be set independently.
func (a *Assignment) Team() bool { return a != nil && len(a.Roles) > 0 }

// IsDenied reports whether cmd is on the actor's denial list.
func (a *Assignment) IsDenied(cmd permission.CommandID) bool {
	return a != nil && slices.Contains(a.Denied, cmd)
}

// Clone returns a deep copy.
func (a *Assignment) Clone() *Assignment {
	if a == nil {
		return nil
	}
	cp := *a
	cp.Roles = slices.Clone(a.Roles)
	cp.Denied = slices.Clone(a.Denied)
	return &cp
}

// ListFilter contains filters for listing assignments.
type ListFilter struct {
	// StaffOnly restricts results to actors holding at least one role.
	StaffOnly bool      `json:"staff_only,omitempty"`
	Role      role.Name `json:"role,omitempty"`
	Limit     int       `json:"limit,omitempty"`
	Offset    int       `json:"offset,omitempty"`
}
