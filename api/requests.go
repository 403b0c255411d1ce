package api

// ──────────────────────────────────────────────────
// Resolve requests
// ──────────────────────────────────────────────────

// ResolveRequest is the body for resolving one command.
type ResolveRequest struct {
	ActorID string `json:"actor_id" validate:"required" description:"Actor invoking the command"`
	Command string `json:"command" validate:"required" description:"Namespaced command ID (e.g. mod.blacklist)"`
}

// ──────────────────────────────────────────────────
// Actor requests
// ──────────────────────────────────────────────────

// GetActorRequest is the path parameter for actor routes.
type GetActorRequest struct {
	ActorID string `path:"actorId" validate:"required" description:"Actor ID"`
}

// SetRolesRequest replaces an actor's role set.
type SetRolesRequest struct {
	ActorID string   `path:"actorId" validate:"required" description:"Actor ID"`
	Roles   []string `json:"roles" validate:"dive,required" description:"Complete role set; empty clears it"`
	Reason  string   `json:"reason,omitempty" validate:"max=512" description:"Audit reason"`
}

// SetDeniedRequest replaces an actor's denial list.
type SetDeniedRequest struct {
	ActorID  string   `path:"actorId" validate:"required" description:"Actor ID"`
	Commands []string `json:"commands" validate:"dive,required" description:"Complete denial list; empty clears it"`
	Reason   string   `json:"reason,omitempty" validate:"max=512" description:"Audit reason"`
}

// RemoveStaffRequest clears an actor's roles and denials.
type RemoveStaffRequest struct {
	ActorID string `path:"actorId" validate:"required" description:"Actor ID"`
	Reason  string `query:"reason" validate:"max=512" description:"Audit reason"`
}

// ListStaffRequest holds query parameters for listing staff.
type ListStaffRequest struct {
	Role   string `query:"role" description:"Filter by role"`
	Limit  int    `query:"limit" validate:"gte=0" description:"Maximum results (default: 50)"`
	Offset int    `query:"offset" validate:"gte=0" description:"Results to skip"`
}

// ──────────────────────────────────────────────────
// Role catalog requests
// ──────────────────────────────────────────────────

// GetRolePermissionsRequest is the path parameter for catalog routes.
type GetRolePermissionsRequest struct {
	Role string `path:"role" validate:"required" description:"Role name"`
}

// SetRolePermissionsRequest replaces a role's catalog entry.
type SetRolePermissionsRequest struct {
	Role   string   `path:"role" validate:"required" description:"Role name"`
	Common []string `json:"common" validate:"dive,required" description:"Entries merged across every held role"`
	Scoped []string `json:"scoped" validate:"dive,required" description:"Entries granted by this role alone"`
	Reason string   `json:"reason,omitempty" validate:"max=512" description:"Audit reason"`
}

// ──────────────────────────────────────────────────
// Audit requests
// ──────────────────────────────────────────────────

// ListAuditRequest holds query parameters for reading the audit log.
type ListAuditRequest struct {
	EntityType string `query:"entity_type" validate:"omitempty,oneof=actor role" description:"Filter by entity type"`
	EntityID   string `query:"entity_id" description:"Filter by entity ID"`
	Since      string `query:"since" description:"Only records changed at or after (RFC3339)"`
	AfterSeq   int64  `query:"after_seq" validate:"gte=0" description:"Cursor: return records after this sequence"`
	Limit      int    `query:"limit" validate:"gte=0" description:"Maximum results"`
}
