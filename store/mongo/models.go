package mongo

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
	ActorID         string    `grove:"id,pk"       bson:"_id"`
	Roles           []string  `grove:"roles"       bson:"roles"`
	Denied          []string  `grove:"denied"      bson:"denied"`
	Locked          bool      `grove:"locked"      bson:"locked"`
	Version         int64     `grove:"version"     bson:"version"`
	UpdatedBy       string    `grove:"updated_by"  bson:"updated_by"`
	UpdatedAt       time.Time `grove:"updated_at"  bson:"updated_at"`
}

func assignmentToModel(a *assignment.Assignment) *assignmentModel {
	denied := make([]string, len(a.Denied))
	for i, c := range a.Denied {
		denied[i] = string(c)
	}
	return &assignmentModel{
		ActorID:   a.ActorID,
		Roles:     a.Roles.Strings(),
		Denied:    denied,
		Locked:    a.Locked,
		Version:   a.Version,
		UpdatedBy: a.UpdatedBy,
		UpdatedAt: a.UpdatedAt,
	}
}

func assignmentFromModel(m *assignmentModel) *assignment.Assignment {
	roles, _ := role.ParseSet(m.Roles) //nolint:errcheck // stored roles were validated on write
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
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

// ──────────────────────────────────────────────────
// Role permission set model
// ──────────────────────────────────────────────────

type permissionSetModel struct {
	grove.BaseModel `grove:"table:bastion_role_permissions"`
	Role            string    `grove:"id,pk"       bson:"_id"`
	Common          []string  `grove:"common"      bson:"common"`
	Scoped          []string  `grove:"scoped"      bson:"scoped"`
	Version         int64     `grove:"version"     bson:"version"`
	UpdatedBy       string    `grove:"updated_by"  bson:"updated_by"`
	UpdatedAt       time.Time `grove:"updated_at"  bson:"updated_at"`
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
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

// ──────────────────────────────────────────────────
// Audit models
// ──────────────────────────────────────────────────

type auditModel struct {
	grove.BaseModel `grove:"table:bastion_audit"`
	Seq             int64     `grove:"id,pk"        bson:"_id"`
	ID              string    `grove:"record_id"    bson:"record_id"`
	EntityType      string    `grove:"entity_type"  bson:"entity_type"`
	EntityID        string    `grove:"entity_id"    bson:"entity_id"`
	Field           string    `grove:"field"        bson:"field"`
	OldValue        string    `grove:"old_value"    bson:"old_value"`
	NewValue        string    `grove:"new_value"    bson:"new_value"`
	ChangedBy       string    `grove:"changed_by"   bson:"changed_by"`
	ChangedAt       time.Time `grove:"changed_at"   bson:"changed_at"`
	Reason          string    `grove:"reason"       bson:"reason"`
	PrevHash        string    `grove:"prev_hash"    bson:"prev_hash"`
	Hash            string    `grove:"hash"         bson:"hash"`
}

func auditToModel(r *audit.Record) *auditModel {
	return &auditModel{
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

// auditHeadModel is the counter document at the tail of the hash chain.
type auditHeadModel struct {
	ID   string `bson:"_id"`
	Seq  int64  `bson:"seq"`
	Hash string `bson:"hash"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
