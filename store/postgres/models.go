package postgres

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/bastion/assignment"
	"github.com/xraph/bastion/audit"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/permission"
	"github.com/xraph/bastion/role"
)

// ──────────────────────────────────────────────────
// Assignment model
// ──────────────────────────────────────────────────

type assignmentModel struct {
	grove.BaseModel `grove:"table:bastion_assignments"`
	ActorID         string    `grove:"actor_id,pk"`
	Roles           []string  `grove:"roles,type:jsonb"`
	Denied          []string  `grove:"denied,type:jsonb"`
	Locked          bool      `grove:"locked,notnull"`
	Version         int64     `grove:"version,notnull"`
	UpdatedBy       string    `grove:"updated_by,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
}

func assignmentToModel(a *assignment.Assignment) *assignmentModel {
	roles := make([]string, len(a.Roles))
	for i, r := range a.Roles {
		roles[i] = string(r)
	}
	denied := make([]string, len(a.Denied))
	for i, c := range a.Denied {
		denied[i] = string(c)
	}
	return &assignmentModel{
		ActorID:   a.ActorID,
		Roles:     roles,
		Denied:    denied,
		Locked:    a.Locked,
		Version:   a.Version,
		UpdatedBy: a.UpdatedBy,
		UpdatedAt: a.UpdatedAt,
	}
}

func assignmentFromModel(m *assignmentModel) *assignment.Assignment {
	// Stored role names were validated on write.
	roles, _ := role.ParseSet(m.Roles) //nolint:errcheck // see above
	denied := make([]permission.CommandID, len(m.Denied))
	for i, c := range m.Denied {
		denied[i] = permission.CommandID(c)
	}
	return &assignment.Assignment{
		ActorID:   m.ActorID,
		Roles:     roles,
		Denied:    denied,
		Locked:    m.Locked,
		Version:   m.Version,
		UpdatedBy: m.UpdatedBy,
		UpdatedAt: m.UpdatedAt,
	}
}

// ──────────────────────────────────────────────────
// Role permission set model
// ──────────────────────────────────────────────────

type permissionSetModel struct {
	grove.BaseModel `grove:"table:bastion_role_permissions"`
	Role            string    `grove:"role,pk"`
	Common          []string  `grove:"common,type:jsonb"`
	Scoped          []string  `grove:"scoped,type:jsonb"`
	Version         int64     `grove:"version,notnull"`
	UpdatedBy       string    `grove:"updated_by,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
}

func permissionSetToModel(s *permission.Set) *permissionSetModel {
	return &permissionSetModel{
		Role:      string(s.Role),
		Common:    nonNil(s.Common),
		Scoped:    nonNil(s.Scoped),
		Version:   s.Version,
		UpdatedBy: s.UpdatedBy,
		UpdatedAt: s.UpdatedAt,
	}
}

func permissionSetFromModel(m *permissionSetModel) *permission.Set {
	return &permission.Set{
		Role:      role.Name(m.Role),
		Common:    nonNil(m.Common),
		Scoped:    nonNil(m.Scoped),
		Version:   m.Version,
		UpdatedBy: m.UpdatedBy,
		UpdatedAt: m.UpdatedAt,
	}
}

// ──────────────────────────────────────────────────
// Audit models
// ──────────────────────────────────────────────────

type auditModel struct {
	grove.BaseModel `grove:"table:bastion_audit"`
	Seq             int64     `grove:"seq,pk"`
	ID              string    `grove:"id,notnull"`
	EntityType      string    `grove:"entity_type,notnull"`
	EntityID        string    `grove:"entity_id,notnull"`
	Field           string    `grove:"field,notnull"`
	OldValue        string    `grove:"old_value,notnull"`
	NewValue        string    `grove:"new_value,notnull"`
	ChangedBy       string    `grove:"changed_by,notnull"`
	ChangedAt       time.Time `grove:"changed_at,notnull"`
	Reason          string    `grove:"reason,notnull"`
	PrevHash        string    `grove:"prev_hash,notnull"`
	Hash            string    `grove:"hash,notnull"`
}

func auditToModel(r *audit.Record) auditModel {
	return auditModel{
		Seq:        r.Seq,
		ID:         r.ID.String(),
		EntityType: string(r.EntityType),
		EntityID:   r.EntityID,
		Field:      r.Field,
		OldValue:   r.OldValue,
		NewValue:   r.NewValue,
		ChangedBy:  r.ChangedBy,
		ChangedAt:  r.ChangedAt,
		Reason:     r.Reason,
		PrevHash:   r.PrevHash,
		Hash:       r.Hash,
	}
}

func auditFromModel(m *auditModel) *audit.Record {
	aid, _ := id.ParseAuditID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &audit.Record{
		ID:         aid,
		Seq:        m.Seq,
		EntityType: audit.EntityType(m.EntityType),
		EntityID:   m.EntityID,
		Field:      m.Field,
		OldValue:   m.OldValue,
		NewValue:   m.NewValue,
		ChangedBy:  m.ChangedBy,
		ChangedAt:  m.ChangedAt.UTC(),
		Reason:     m.Reason,
		PrevHash:   m.PrevHash,
		Hash:       m.Hash,
	}
}

// auditHeadModel is the single row tracking the tail of the hash chain.
// Commits advance it with a compare-and-set on Seq, which serializes
// appends across writers.
type auditHeadModel struct {
	grove.BaseModel `grove:"table:bastion_audit_head"`
	ID              int    `grove:"id,pk"`
	Seq             int64  `grove:"seq,notnull"`
	Hash            string `grove:"hash,notnull"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
