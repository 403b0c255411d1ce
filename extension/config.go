package extension

import "github.com/xraph/bastion"

// Store drivers understood by StoreDriver.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
)

// Config holds the Bastion extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.bastion" or "bastion" keys).
type Config struct {
	// Engine is passed through to bastion.NewEngine.
	Engine bastion.Config `json:"engine" mapstructure:"engine" yaml:"engine"`

	// DisableRoutes prevents HTTP route registration.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// DisableBootstrap skips provisioning Engine.TrustedOperators on start.
	DisableBootstrap bool `json:"disable_bootstrap" mapstructure:"disable_bootstrap" yaml:"disable_bootstrap"`

	// SeedCatalog writes the default role catalog on start for roles that
	// have no stored permission set.
	SeedCatalog bool `json:"seed_catalog" mapstructure:"seed_catalog" yaml:"seed_catalog"`

	// StoreDriver selects the store built over a grove.DB resolved from the
	// DI container: "postgres", "sqlite" or "mongo". Empty means the store
	// comes from WithStore or the container.
	StoreDriver string `json:"store_driver" mapstructure:"store_driver" yaml:"store_driver"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Engine:      bastion.DefaultConfig(),
		SeedCatalog: true,
	}
}
