// Package plugin defines the plugin system for Bastion.
// Plugins are notified of lifecycle events (command resolved, roles changed,
// catalog edited, etc.) and can react with logging, metrics or alerting.
//
// Each lifecycle hook is a separate interface so plugins opt in only
// to the events they care about.
package plugin

import (
	"context"

	"github.com/xraph/bastion/assignment"
	"github.com/xraph/bastion/permission"
)

// Plugin is the base interface all plugins must implement.
type Plugin interface {
	// Name returns a unique human-readable name for the plugin.
	Name() string
}

// ──────────────────────────────────────────────────
// Resolve hooks
// ──────────────────────────────────────────────────

// AfterResolve is called after a command has been resolved for an actor.
// The result parameter is *bastion.Result (passed as any to avoid an import cycle).
type AfterResolve interface {
	OnAfterResolve(ctx context.Context, actorID, command string, result any) error
}

// ──────────────────────────────────────────────────
// Mutation hooks
// ──────────────────────────────────────────────────

// RolesChanged is called after an actor's role set or team flag changed.
type RolesChanged interface {
	OnRolesChanged(ctx context.Context, changedBy string, before, after *assignment.Assignment) error
}

// DeniedChanged is called after an actor's denial list changed.
type DeniedChanged interface {
	OnDeniedChanged(ctx context.Context, changedBy string, before, after *assignment.Assignment) error
}

// CatalogChanged is called after a role's permission set changed.
type CatalogChanged interface {
	OnCatalogChanged(ctx context.Context, changedBy string, before, after *permission.Set) error
}

// ──────────────────────────────────────────────────
// Operational hooks
// ──────────────────────────────────────────────────

// BootstrapCompleted is called after a bootstrap pass.
// The report parameter is *bastion.BootstrapReport.
type BootstrapCompleted interface {
	OnBootstrapCompleted(ctx context.Context, report any) error
}

// InfraFailure is called whenever a store call fails or times out.
type InfraFailure interface {
	OnInfraFailure(ctx context.Context, op string, err error) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
