// Package audit defines the append-only history of authorization changes.
//
// Every mutation of an actor's roles or denials and every change to a role's
// permission catalog produces one or more Records. Records are never updated
// or deleted. Each record is chained to its predecessor with a BLAKE3 hash so
// that a rewritten history is detectable.
package audit

import (
	"time"

	"github.com/xraph/bastion/id"
)

// EntityType names the kind of entity a record describes.
type EntityType string

const (
	EntityActor EntityType = "actor"
	EntityRole  EntityType = "role"
)

// Field names the attribute that changed.
const (
	FieldRole        = "role"
	FieldTeam        = "team"
	FieldDenied      = "denied"
	FieldLocked      = "locked"
	FieldPermissions = "permissions"
)

// SystemActor is the ChangedBy value of mutations performed by the engine
// itself, such as bootstrap provisioning.
const SystemActor = "system"

// Record is one immutable change.
type Record struct {
	ID         id.ID      `json:"id" db:"id"`
	Seq        int64      `json:"seq" db:"seq"`
	EntityType EntityType `json:"entity_type" db:"entity_type"`
	EntityID   string     `json:"entity_id" db:"entity_id"`
	Field      string     `json:"field" db:"field"`
	OldValue   string     `json:"old_value" db:"old_value"`
	NewValue   string     `json:"new_value" db:"new_value"`
	ChangedBy  string     `json:"changed_by" db:"changed_by"`
	ChangedAt  time.Time  `json:"changed_at" db:"changed_at"`
	Reason     string     `json:"reason,omitempty" db:"reason"`
	PrevHash   string     `json:"prev_hash" db:"prev_hash"`
	Hash       string     `json:"hash" db:"hash"`
}

// QueryFilter selects a page of records. Results are always in ascending
// Seq order; AfterSeq is the cursor for the next page.
type QueryFilter struct {
	EntityType EntityType `json:"entity_type,omitempty"`
	EntityID   string     `json:"entity_id,omitempty"`
	Since      *time.Time `json:"since,omitempty"`
	AfterSeq   int64      `json:"after_seq,omitempty"`
	Limit      int        `json:"limit,omitempty"`
}
