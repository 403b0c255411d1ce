package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("BASTION_SUPER_ADMIN_ID", "1000")
	t.Setenv("BASTION_TRUSTED_OPERATOR_IDS", "9,10")
	t.Setenv("BASTION_STORE_TIMEOUT", "750ms")

	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, "1000", cfg.SuperAdminID)
	assert.Equal(t, []string{"9", "10"}, cfg.TrustedOperatorIDs)
	assert.Equal(t, 750*time.Millisecond, cfg.StoreTimeout)
	assert.Equal(t, 3, cfg.MaxCommitRetries)
	assert.True(t, cfg.SeedCatalog)

	ec := cfg.engineConfig()
	assert.Equal(t, cfg.TrustedOperatorIDs, ec.TrustedOperators)
	assert.Equal(t, 100, ec.AuditPageSize)
}

func TestLoadConfigRequiresAnOperator(t *testing.T) {
	t.Setenv("BASTION_SUPER_ADMIN_ID", "")
	t.Setenv("BASTION_TRUSTED_OPERATOR_IDS", "")

	_, err := loadConfig()
	require.Error(t, err)
}

func TestLoggerLevel(t *testing.T) {
	cfg := &config{LogFormat: "text", LogLevel: "debug"}
	assert.True(t, cfg.logger().Enabled(t.Context(), -4))

	cfg = &config{LogFormat: "json", LogLevel: "bogus"}
	assert.False(t, cfg.logger().Enabled(t.Context(), -4))
}

func TestLoadConfigStoreDriver(t *testing.T) {
	t.Setenv("BASTION_SUPER_ADMIN_ID", "1000")

	t.Setenv("BASTION_STORE_DRIVER", "sqlite")
	t.Setenv("BASTION_STORE_DSN", "")
	_, err := loadConfig()
	require.Error(t, err, "a driver without a DSN must be rejected")

	t.Setenv("BASTION_STORE_DSN", "/var/lib/bastion/bastion.db")
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.StoreDriver)

	t.Setenv("BASTION_STORE_DRIVER", "cassandra")
	_, err = loadConfig()
	require.Error(t, err)
}

func TestOpenStoreDefaultsToMemory(t *testing.T) {
	st, err := openStore(t.Context(), &config{})
	require.NoError(t, err)
	require.NoError(t, st.Ping(t.Context()))
	require.NoError(t, st.Close())
}
