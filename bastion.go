// Package bastion decides whether a staff member may run a namespaced
// administrative command, and records every change to who may run what.
//
// Authorization state is a role set and a personal denial list per actor,
// plus a per-role catalog of granted commands. Decisions are made by the
// pure Resolve function against an explicit Snapshot; the Engine loads
// snapshots, performs audited mutations and provisions trusted operators.
//
//	eng, err := bastion.NewEngine(
//	    bastion.WithStore(memory.New()),
//	    bastion.WithConfig(bastion.Config{SuperAdminID: "1234"}),
//	)
//	res, err := eng.Check(ctx, "5678", "mod.blacklist")
//	if res.Allowed { ... }
package bastion

import (
	"github.com/xraph/bastion/permission"
	"github.com/xraph/bastion/role"
)

// Decision is the authorization outcome.
type Decision string

const (
	// DecisionAllow means the command may run.
	DecisionAllow Decision = "allow"

	// DecisionDenyMissingRole means none of the actor's roles is eligible
	// for the command's namespace.
	DecisionDenyMissingRole Decision = "deny_missing_role"

	// DecisionDenyNotGranted means the actor is eligible for the namespace
	// but no held role lists the command.
	DecisionDenyNotGranted Decision = "deny_not_granted"

	// DecisionDenyExplicit means the command is on the actor's denial list.
	DecisionDenyExplicit Decision = "deny_explicit"

	// DecisionDenyInfraFailure means authorization state could not be
	// loaded and the engine failed closed.
	DecisionDenyInfraFailure Decision = "deny_infra_failure"
)

// Result is the outcome of resolving one command for one actor.
type Result struct {
	Allowed         bool                 `json:"allowed"`
	Decision        Decision             `json:"decision"`
	Reason          string               `json:"reason,omitempty"`
	ActorID         string               `json:"actor_id"`
	CommandID       permission.CommandID `json:"command_id"`
	GrantedBy       role.Name            `json:"granted_by,omitempty"`
	SnapshotVersion int64                `json:"snapshot_version"`
}
