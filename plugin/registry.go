package plugin

import (
	"context"
	"log/slog"

	"github.com/xraph/bastion/assignment"
	"github.com/xraph/bastion/permission"
)

// Named entry types pair a hook with the plugin name for logging.

type afterResolveEntry struct {
	name string
	hook AfterResolve
}
type rolesChangedEntry struct {
	name string
	hook RolesChanged
}
type deniedChangedEntry struct {
	name string
	hook DeniedChanged
}
type catalogChangedEntry struct {
	name string
	hook CatalogChanged
}
type bootstrapCompletedEntry struct {
	name string
	hook BootstrapCompleted
}
type infraFailureEntry struct {
	name string
	hook InfraFailure
}
type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered plugins and dispatches lifecycle events.
// It type-caches plugins at registration time so emit calls iterate
// only over plugins implementing the relevant hook.
type Registry struct {
	plugins []Plugin
	logger  *slog.Logger

	afterResolve       []afterResolveEntry
	rolesChanged       []rolesChangedEntry
	deniedChanged      []deniedChangedEntry
	catalogChanged     []catalogChangedEntry
	bootstrapCompleted []bootstrapCompletedEntry
	infraFailure       []infraFailureEntry
	shutdown           []shutdownEntry
}

// NewRegistry creates a plugin registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds a plugin and type-asserts it into all applicable
// hook caches. Plugins are notified in registration order.
func (r *Registry) Register(p Plugin) {
	r.plugins = append(r.plugins, p)
	name := p.Name()

	if h, ok := p.(AfterResolve); ok {
		r.afterResolve = append(r.afterResolve, afterResolveEntry{name, h})
	}
	if h, ok := p.(RolesChanged); ok {
		r.rolesChanged = append(r.rolesChanged, rolesChangedEntry{name, h})
	}
	if h, ok := p.(DeniedChanged); ok {
		r.deniedChanged = append(r.deniedChanged, deniedChangedEntry{name, h})
	}
	if h, ok := p.(CatalogChanged); ok {
		r.catalogChanged = append(r.catalogChanged, catalogChangedEntry{name, h})
	}
	if h, ok := p.(BootstrapCompleted); ok {
		r.bootstrapCompleted = append(r.bootstrapCompleted, bootstrapCompletedEntry{name, h})
	}
	if h, ok := p.(InfraFailure); ok {
		r.infraFailure = append(r.infraFailure, infraFailureEntry{name, h})
	}
	if h, ok := p.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Plugins returns all registered plugins.
func (r *Registry) Plugins() []Plugin { return r.plugins }

// SetLogger replaces the logger used for hook errors.
func (r *Registry) SetLogger(l *slog.Logger) {
	if l != nil {
		r.logger = l
	}
}

// ──────────────────────────────────────────────────
// Resolve event emitters
// ──────────────────────────────────────────────────

// EmitAfterResolve notifies all plugins that implement AfterResolve.
func (r *Registry) EmitAfterResolve(ctx context.Context, actorID, command string, result any) {
	for _, e := range r.afterResolve {
		if err := e.hook.OnAfterResolve(ctx, actorID, command, result); err != nil {
			r.logHookError("OnAfterResolve", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Mutation event emitters
// ──────────────────────────────────────────────────

// EmitRolesChanged notifies all plugins that implement RolesChanged.
func (r *Registry) EmitRolesChanged(ctx context.Context, changedBy string, before, after *assignment.Assignment) {
	for _, e := range r.rolesChanged {
		if err := e.hook.OnRolesChanged(ctx, changedBy, before, after); err != nil {
			r.logHookError("OnRolesChanged", e.name, err)
		}
	}
}

// EmitDeniedChanged notifies all plugins that implement DeniedChanged.
func (r *Registry) EmitDeniedChanged(ctx context.Context, changedBy string, before, after *assignment.Assignment) {
	for _, e := range r.deniedChanged {
		if err := e.hook.OnDeniedChanged(ctx, changedBy, before, after); err != nil {
			r.logHookError("OnDeniedChanged", e.name, err)
		}
	}
}

// EmitCatalogChanged notifies all plugins that implement CatalogChanged.
func (r *Registry) EmitCatalogChanged(ctx context.Context, changedBy string, before, after *permission.Set) {
	for _, e := range r.catalogChanged {
		if err := e.hook.OnCatalogChanged(ctx, changedBy, before, after); err != nil {
			r.logHookError("OnCatalogChanged", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Operational event emitters
// ──────────────────────────────────────────────────

// EmitBootstrapCompleted notifies all plugins that implement BootstrapCompleted.
func (r *Registry) EmitBootstrapCompleted(ctx context.Context, report any) {
	for _, e := range r.bootstrapCompleted {
		if err := e.hook.OnBootstrapCompleted(ctx, report); err != nil {
			r.logHookError("OnBootstrapCompleted", e.name, err)
		}
	}
}

// EmitInfraFailure notifies all plugins that implement InfraFailure.
func (r *Registry) EmitInfraFailure(ctx context.Context, op string, failure error) {
	for _, e := range r.infraFailure {
		if err := e.hook.OnInfraFailure(ctx, op, failure); err != nil {
			r.logHookError("OnInfraFailure", e.name, err)
		}
	}
}

// EmitShutdown notifies all plugins that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated.
func (r *Registry) logHookError(hook, pluginName string, err error) {
	r.logger.Warn("plugin hook error",
		slog.String("hook", hook),
		slog.String("plugin", pluginName),
		slog.String("error", err.Error()),
	)
}
