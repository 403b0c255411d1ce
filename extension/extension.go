// Package extension provides a Forge extension entry point for Bastion.
package extension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	"github.com/xraph/bastion"
	"github.com/xraph/bastion/api"
	"github.com/xraph/bastion/permission"
	"github.com/xraph/bastion/plugin"
	"github.com/xraph/bastion/store"
	mongostore "github.com/xraph/bastion/store/mongo"
	pgstore "github.com/xraph/bastion/store/postgres"
	sqlitestore "github.com/xraph/bastion/store/sqlite"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "bastion"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Role-based command authorization with an audited, hash-chained change log"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Bastion as a Forge extension.
type Extension struct {
	config     Config
	eng        *bastion.Engine
	store      store.Store
	apiHandler *api.API
	logger     *slog.Logger
	engineOpts []bastion.Option
	plugins    []plugin.Plugin
}

// New creates a Bastion Forge extension with the given options.
func New(opts ...ExtOption) *Extension {
	e := &Extension{config: DefaultConfig()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the extension name.
func (e *Extension) Name() string { return ExtensionName }

// Description returns the extension description.
func (e *Extension) Description() string { return ExtensionDescription }

// Version returns the extension version.
func (e *Extension) Version() string { return ExtensionVersion }

// Dependencies returns the list of extension names this extension depends on.
func (e *Extension) Dependencies() []string { return []string{} }

// Engine returns the underlying Bastion engine.
func (e *Extension) Engine() *bastion.Engine { return e.eng }

// API returns the API handler.
func (e *Extension) API() *api.API { return e.apiHandler }

// Register implements [forge.Extension]. It initializes the engine,
// registers it in the DI container, and optionally registers HTTP routes.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.init(fapp); err != nil {
		return err
	}

	if err := vessel.Provide(fapp.Container(), func() (*bastion.Engine, error) {
		return e.eng, nil
	}); err != nil {
		return fmt.Errorf("bastion: register engine in container: %w", err)
	}

	return nil
}

func (e *Extension) init(fapp forge.App) error {
	logger := e.logger
	if logger == nil {
		logger = slog.Default()
	}

	s, err := e.resolveStore(fapp)
	if err != nil {
		return err
	}

	opts := make([]bastion.Option, 0, len(e.engineOpts)+len(e.plugins)+3)
	opts = append(opts,
		bastion.WithLogger(logger),
		bastion.WithStore(s),
		bastion.WithConfig(e.config.Engine),
	)
	opts = append(opts, e.engineOpts...)
	for _, x := range e.plugins {
		opts = append(opts, bastion.WithPlugin(x))
	}

	eng, err := bastion.NewEngine(opts...)
	if err != nil {
		return fmt.Errorf("bastion: create engine: %w", err)
	}
	e.eng = eng

	e.apiHandler = api.New(eng, fapp.Router())
	if !e.config.DisableRoutes {
		if err := e.apiHandler.RegisterRoutes(fapp.Router()); err != nil {
			return fmt.Errorf("bastion: register routes: %w", err)
		}
	}

	return nil
}

// resolveStore picks the store in order: WithStore, a grove.DB from the
// container wrapped by the configured driver, a store.Store from the
// container.
func (e *Extension) resolveStore(fapp forge.App) (store.Store, error) {
	if e.store != nil {
		return e.store, nil
	}
	if e.config.StoreDriver != "" {
		db, err := forge.Inject[*grove.DB](fapp.Container())
		if err != nil {
			return nil, fmt.Errorf("bastion: resolve grove database: %w", err)
		}
		return NewStore(e.config.StoreDriver, db)
	}
	s, err := forge.Inject[store.Store](fapp.Container())
	if err != nil {
		return nil, fmt.Errorf("bastion: no store configured: %w", err)
	}
	return s, nil
}

// OpenStore connects to dsn with the grove driver registered for driver and
// wraps the connection in the matching store. Closing the store closes the
// connection.
func OpenStore(ctx context.Context, driver, dsn string) (store.Store, error) {
	if driver == DriverSQLite {
		dsn = sqlitestore.DSN(dsn)
	}
	drv, err := grove.OpenDriver(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("bastion: open %s: %w", driver, err)
	}
	db, err := grove.Open(drv)
	if err != nil {
		_ = drv.Close()
		return nil, fmt.Errorf("bastion: open %s: %w", driver, err)
	}
	s, err := NewStore(driver, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore builds the grove-backed store for driver.
func NewStore(driver string, db *grove.DB) (store.Store, error) {
	switch driver {
	case DriverPostgres:
		return pgstore.New(db), nil
	case DriverSQLite:
		return sqlitestore.New(db), nil
	case DriverMongo:
		return mongostore.New(db), nil
	default:
		return nil, fmt.Errorf("bastion: unknown store driver %q", driver)
	}
}

// Start runs migrations, seeds the default catalog and provisions trusted
// operators, each unless disabled.
func (e *Extension) Start(ctx context.Context) error {
	if e.eng == nil {
		return errors.New("bastion: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.eng.Store().Migrate(ctx); err != nil {
			return fmt.Errorf("bastion: migration failed: %w", err)
		}
	}

	if e.config.SeedCatalog {
		if _, err := e.eng.SeedCatalog(ctx, permission.DefaultCatalog()); err != nil {
			return fmt.Errorf("bastion: seed catalog: %w", err)
		}
	}

	if e.config.DisableBootstrap {
		return nil
	}
	return e.eng.Start(ctx)
}

// Stop gracefully shuts down the bastion engine.
func (e *Extension) Stop(ctx context.Context) error {
	if e.eng == nil {
		return nil
	}
	return e.eng.Stop(ctx)
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.eng == nil {
		return errors.New("bastion: extension not initialized")
	}
	return e.eng.Ping(ctx)
}

// Handler returns the HTTP handler for all API routes.
func (e *Extension) Handler() http.Handler {
	if e.apiHandler == nil {
		return http.NotFoundHandler()
	}
	return e.apiHandler.Handler()
}

// RegisterRoutes registers all bastion API routes into a Forge router.
func (e *Extension) RegisterRoutes(router forge.Router) error {
	if e.apiHandler != nil {
		return e.apiHandler.RegisterRoutes(router)
	}
	return nil
}
