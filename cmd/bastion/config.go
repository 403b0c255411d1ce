package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/xraph/bastion"
	"github.com/xraph/bastion/extension"
)

// config holds runtime configuration read from BASTION_* variables.
type config struct {
	SuperAdminID       string        `envconfig:"SUPER_ADMIN_ID"`
	TrustedOperatorIDs []string      `envconfig:"TRUSTED_OPERATOR_IDS"`
	StoreTimeout       time.Duration `envconfig:"STORE_TIMEOUT" default:"3s"`
	MaxCommitRetries   int           `envconfig:"MAX_COMMIT_RETRIES" default:"3"`
	AuditPageSize      int           `envconfig:"AUDIT_PAGE_SIZE" default:"100"`
	SeedCatalog        bool          `envconfig:"SEED_CATALOG" default:"true"`

	// StoreDriver is one of postgres, sqlite or mongo. Empty keeps state in
	// memory for the lifetime of the process.
	StoreDriver string `envconfig:"STORE_DRIVER"`
	StoreDSN    string `envconfig:"STORE_DSN"`

	RedisAddr   string `envconfig:"REDIS_ADDR"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
}

func loadConfig() (*config, error) {
	var cfg config
	if err := envconfig.Process("bastion", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.SuperAdminID == "" && len(cfg.TrustedOperatorIDs) == 0 {
		return nil, fmt.Errorf("load config: set BASTION_SUPER_ADMIN_ID or BASTION_TRUSTED_OPERATOR_IDS")
	}
	switch cfg.StoreDriver {
	case "", extension.DriverPostgres, extension.DriverSQLite, extension.DriverMongo:
	default:
		return nil, fmt.Errorf("load config: unknown BASTION_STORE_DRIVER %q", cfg.StoreDriver)
	}
	if cfg.StoreDriver != "" && cfg.StoreDSN == "" {
		return nil, fmt.Errorf("load config: BASTION_STORE_DSN is required with BASTION_STORE_DRIVER=%s", cfg.StoreDriver)
	}
	return &cfg, nil
}

func (c *config) engineConfig() bastion.Config {
	return bastion.Config{
		SuperAdminID:     c.SuperAdminID,
		TrustedOperators: c.TrustedOperatorIDs,
		StoreTimeout:     c.StoreTimeout,
		MaxCommitRetries: c.MaxCommitRetries,
		AuditPageSize:    c.AuditPageSize,
	}
}

func (c *config) logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
