package bastion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/bastion/cache"
	"github.com/xraph/bastion/lock"
	"github.com/xraph/bastion/permission"
	"github.com/xraph/bastion/plugin"
	"github.com/xraph/bastion/store"
)

// Engine is the central authorization engine. It loads snapshots for the
// resolver, performs audited mutations of assignments and the role catalog,
// provisions trusted operators, and fires plugin hooks.
type Engine struct {
	store    store.Store
	locker   lock.Locker
	fallback Fallback
	plugins  *plugin.Registry
	logger   *slog.Logger
	config   Config
	now      func() time.Time
}

// NewEngine creates a new Bastion engine with the given options.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger: slog.Default(),
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		return nil, errors.New("bastion: store is required")
	}
	e.config = e.config.withDefaults()
	if e.locker == nil {
		e.locker = lock.NewLocal()
	}
	if e.fallback == nil {
		e.fallback = cache.NewMemory()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.plugins == nil {
		e.plugins = plugin.NewRegistry(e.logger)
	} else {
		e.plugins.SetLogger(e.logger)
	}
	return e, nil
}

// Store returns the underlying composite store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.config }

// Start provisions the configured trusted operators.
func (e *Engine) Start(ctx context.Context) error {
	if len(e.config.TrustedOperators) == 0 {
		return nil
	}
	_, err := e.BootstrapSync(ctx, e.config.TrustedOperators)
	return err
}

// Stop performs graceful shutdown.
func (e *Engine) Stop(ctx context.Context) error {
	e.plugins.EmitShutdown(ctx)
	return nil
}

// Check resolves command for actorID against a freshly loaded snapshot.
// This is the hot path, called before every administrative command.
//
// A malformed command yields ErrValidation. A store outage does not yield an
// error: the result is a DecisionDenyInfraFailure denial unless the actor is
// the super admin or a last known-good trusted operator.
func (e *Engine) Check(ctx context.Context, actorID, command string) (*Result, error) {
	cmd, err := permission.ParseCommandID(command)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	snap, err := e.Snapshot(ctx, actorID)
	if err != nil && !errors.Is(err, ErrInfraFailure) {
		return nil, err
	}

	result := Resolve(snap, actorID, cmd)
	if !result.Allowed {
		e.logger.Debug("command denied",
			slog.String("actor_id", actorID),
			slog.String("command_id", command),
			slog.String("decision", string(result.Decision)),
		)
	}
	e.plugins.EmitAfterResolve(ctx, actorID, command, result)
	return result, nil
}

// Enforce returns an error if command is not allowed for actorID. Denials
// caused by an outage wrap ErrInfraFailure as well as ErrAccessDenied.
func (e *Engine) Enforce(ctx context.Context, actorID, command string) error {
	result, err := e.Check(ctx, actorID, command)
	if err != nil {
		return fmt.Errorf("bastion check: %w", err)
	}
	if result.Allowed {
		return nil
	}
	if result.Decision == DecisionDenyInfraFailure {
		return fmt.Errorf("%w: %w: %s", ErrAccessDenied, ErrInfraFailure, result.Reason)
	}
	return fmt.Errorf("%w: %s: %s", ErrAccessDenied, result.Decision, result.Reason)
}

// Ping checks store connectivity within the store timeout.
func (e *Engine) Ping(ctx context.Context) error {
	return e.call(ctx, "ping", e.store.Ping)
}

// call runs fn under the store timeout. Not-found and conflict errors pass
// through; anything else is reported and wrapped in ErrInfraFailure.
func (e *Engine) call(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, e.config.StoreTimeout)
	defer cancel()

	err := fn(ctx)
	if err == nil || errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrConflict) {
		return err
	}
	return e.infraFailure(ctx, op, err)
}

func (e *Engine) infraFailure(ctx context.Context, op string, err error) error {
	e.logger.Error("store call failed",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	e.plugins.EmitInfraFailure(context.WithoutCancel(ctx), op, err)
	return fmt.Errorf("%w: %s: %w", ErrInfraFailure, op, err)
}

// timestamp returns the current time at the millisecond precision every
// backend can store.
func (e *Engine) timestamp() time.Time {
	return e.now().UTC().Truncate(time.Millisecond)
}
