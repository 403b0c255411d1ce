package bastion

import "errors"

var (
	// ErrPermission is returned when the caller lacks authority over the
	// target or the role being granted.
	ErrPermission = errors.New("bastion: permission denied")

	// ErrNotFound is returned when an operation needs an assignment that
	// does not exist.
	ErrNotFound = errors.New("bastion: assignment not found")

	// ErrLockedRole is returned when a change would strip a
	// bootstrap-provisioned Dev or Manager role.
	ErrLockedRole = errors.New("bastion: role is locked")

	// ErrValidation is returned for unknown roles or malformed commands.
	ErrValidation = errors.New("bastion: validation failed")

	// ErrInfraFailure is returned when the store is unreachable or a call
	// exceeded its timeout.
	ErrInfraFailure = errors.New("bastion: infrastructure failure")

	// ErrConflict is returned when concurrent writers kept winning the
	// compare-and-set race for the same target.
	ErrConflict = errors.New("bastion: concurrent modification")

	// ErrAccessDenied is returned by Enforce when a command is not allowed.
	ErrAccessDenied = errors.New("bastion: access denied")
)
