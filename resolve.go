package bastion

import (
	"github.com/xraph/bastion/assignment"
	"github.com/xraph/bastion/permission"
	"github.com/xraph/bastion/role"
)

// Resolve decides whether actorID may run cmd given snap. It performs no I/O
// and returns the same result for the same inputs.
//
// Precedence, most authoritative first: the super admin bypass, the actor's
// personal denial list, namespace eligibility, then an explicit catalog
// grant. Dev and Manager skip the last two but not the denial list.
func Resolve(snap *Snapshot, actorID string, cmd permission.CommandID) *Result {
	res := &Result{ActorID: actorID, CommandID: cmd}
	if snap == nil {
		return res.deny(DecisionDenyInfraFailure, "no authorization snapshot")
	}
	res.SnapshotVersion = snap.Version

	if snap.SuperAdminID != "" && actorID == snap.SuperAdminID {
		return res.allow("", "super admin")
	}

	if snap.Degraded {
		a, ok := snap.Trusted[actorID]
		if !ok || !a.Roles.HasTop() {
			return res.deny(DecisionDenyInfraFailure, "authorization state unavailable")
		}
		return resolveTop(res, a, cmd)
	}

	a := snap.Assignment(actorID)
	if a.Roles.HasTop() {
		return resolveTop(res, a, cmd)
	}

	ns := cmd.Namespace()
	if !a.Roles.EligibleFor(ns) {
		return res.deny(DecisionDenyMissingRole, "no role is eligible for namespace "+string(ns))
	}

	var grantedBy role.Name
	for _, r := range a.Roles {
		if snap.Catalog[r].Grants(cmd) {
			grantedBy = r
			break
		}
	}
	if grantedBy == "" {
		return res.deny(DecisionDenyNotGranted, "no held role grants "+cmd.String())
	}

	if a.IsDenied(cmd) {
		return res.deny(DecisionDenyExplicit, cmd.String()+" is on the actor's denial list")
	}
	return res.allow(grantedBy, "granted by "+string(grantedBy))
}

func resolveTop(res *Result, a *assignment.Assignment, cmd permission.CommandID) *Result {
	if a.IsDenied(cmd) {
		return res.deny(DecisionDenyExplicit, cmd.String()+" is on the actor's denial list")
	}
	top := role.Manager
	if a.Roles.Has(role.Dev) {
		top = role.Dev
	}
	return res.allow(top, "top tier role "+string(top))
}

func (r *Result) allow(by role.Name, reason string) *Result {
	r.Allowed = true
	r.Decision = DecisionAllow
	r.GrantedBy = by
	r.Reason = reason
	return r
}

func (r *Result) deny(d Decision, reason string) *Result {
	r.Allowed = false
	r.Decision = d
	r.Reason = reason
	return r
}
