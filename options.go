package bastion

import (
	"log/slog"
	"time"

	"github.com/xraph/bastion/lock"
	"github.com/xraph/bastion/plugin"
	"github.com/xraph/bastion/store"
)

// Option is a functional option for the Engine.
type Option func(*Engine)

// WithStore sets the composite store.
func WithStore(s store.Store) Option { return func(e *Engine) { e.store = s } }

// WithLocker sets the per-target lock used to serialize mutations.
func WithLocker(l lock.Locker) Option { return func(e *Engine) { e.locker = l } }

// WithFallback sets where last known-good trusted operator records are kept.
func WithFallback(f Fallback) Option { return func(e *Engine) { e.fallback = f } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithConfig sets the engine configuration.
func WithConfig(c Config) Option { return func(e *Engine) { e.config = c } }

// WithClock overrides the time source used for audit timestamps.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithPlugin registers a plugin with the engine.
func WithPlugin(x plugin.Plugin) Option {
	return func(e *Engine) {
		if e.plugins == nil {
			e.plugins = plugin.NewRegistry(e.logger)
		}
		e.plugins.Register(x)
	}
}
