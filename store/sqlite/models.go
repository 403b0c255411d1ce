package sqlite

import (
	"encoding/json"
	"fmt"
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
	Roles           string    `grove:"roles,notnull"`  // JSON text
	Denied          string    `grove:"denied,notnull"` // JSON text
	Locked          bool      `grove:"locked,notnull"`
	Version         int64     `grove:"version,notnull"`
	UpdatedBy       string    `grove:"updated_by,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
}

func assignmentToModel(a *assignment.Assignment) (*assignmentModel, error) {
	roles, err := json.Marshal(nonNil(a.Roles))
	if err != nil {
		return nil, fmt.Errorf("marshal assignment roles: %w", err)
	}
	denied, err := json.Marshal(nonNil(a.Denied))
	if err != nil {
		return nil, fmt.Errorf("marshal assignment denied: %w", err)
	}
	return &assignmentModel{
		ActorID:   a.ActorID,
		Roles:     string(roles),
		Denied:    string(denied),
		Locked:    a.Locked,
		Version:   a.Version,
		UpdatedBy: a.UpdatedBy,
		UpdatedAt: a.UpdatedAt,
	}, nil
}

func assignmentFromModel(m *assignmentModel) (*assignment.Assignment, error) {
	var raw []string
	if err := json.Unmarshal([]byte(m.Roles), &raw); err != nil {
		return nil, fmt.Errorf("unmarshal assignment roles: %w", err)
	}
	roles, err := role.ParseSet(raw)
	if err != nil {
		return nil, fmt.Errorf("assignment %s: %w", m.ActorID, err)
	}
	denied := []permission.CommandID{}
	if err := json.Unmarshal([]byte(m.Denied), &denied); err != nil {
		return nil, fmt.Errorf("unmarshal assignment denied: %w", err)
	}
	return &assignment.Assignment{
		ActorID:   m.ActorID,
		Roles:     roles,
		Denied:    denied,
		Locked:    m.Locked,
		Version:   m.Version,
		UpdatedBy: m.UpdatedBy,
		UpdatedAt: m.UpdatedAt.UTC(),
	}, nil
}

// ──────────────────────────────────────────────────
// Role permission set model
// ──────────────────────────────────────────────────

type permissionSetModel struct {
	grove.BaseModel `grove:"table:bastion_role_permissions"`
	Role            string    `grove:"role,pk"`
	Common          string    `grove:"common,notnull"` // JSON text
	Scoped          string    `grove:"scoped,notnull"` // JSON text
	Version         int64     `grove:"version,notnull"`
	UpdatedBy       string    `grove:"updated_by,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
}

func permissionSetToModel(s *permission.Set) (*permissionSetModel, error) {
	common, err := json.Marshal(nonNil(s.Common))
	if err != nil {
		return nil, fmt.Errorf("marshal common entries: %w", err)
	}
	scoped, err := json.Marshal(nonNil(s.Scoped))
	if err != nil {
		return nil, fmt.Errorf("marshal scoped entries: %w", err)
	}
	return &permissionSetModel{
		Role:      string(s.Role),
		Common:    string(common),
		Scoped:    string(scoped),
		Version:   s.Version,
		UpdatedBy: s.UpdatedBy,
		UpdatedAt: s.UpdatedAt,
	}, nil
}

func permissionSetFromModel(m *permissionSetModel) (*permission.Set, error) {
	s := permission.Empty(role.Name(m.Role))
	if err := json.Unmarshal([]byte(m.Common), &s.Common); err != nil {
		return nil, fmt.Errorf("unmarshal common entries: %w", err)
	}
	if err := json.Unmarshal([]byte(m.Scoped), &s.Scoped); err != nil {
		return nil, fmt.Errorf("unmarshal scoped entries: %w", err)
	}
	s.Version = m.Version
	s.UpdatedBy = m.UpdatedBy
	s.UpdatedAt = m.UpdatedAt.UTC()
	return s, nil
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

type auditHeadModel struct {
	grove.BaseModel `grove:"table:bastion_audit_head"`
	ID              int    `grove:"id,pk"`
	Seq             int64  `grove:"seq,notnull"`
	Hash            string `grove:"hash,notnull"`
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
