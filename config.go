package bastion

import "time"

// maxAuditPageSize caps a single audit query.
const maxAuditPageSize = 1000

// Config holds configuration for the Bastion engine.
type Config struct {
	// SuperAdminID is the one identity that bypasses every check.
	// Empty disables the bypass.
	SuperAdminID string `json:"super_admin_id,omitempty"`

	// TrustedOperators are provisioned with {Manager, Dev} by BootstrapSync.
	TrustedOperators []string `json:"trusted_operators,omitempty"`

	// StoreTimeout bounds every store round trip. Defaults to 3s.
	StoreTimeout time.Duration `json:"store_timeout,omitempty"`

	// MaxCommitRetries is how often a mutation is retried after losing a
	// compare-and-set race. Defaults to 3.
	MaxCommitRetries int `json:"max_commit_retries,omitempty"`

	// AuditPageSize is the default page size of audit queries.
	// Defaults to 100.
	AuditPageSize int `json:"audit_page_size,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		StoreTimeout:     3 * time.Second,
		MaxCommitRetries: 3,
		AuditPageSize:    100,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = d.StoreTimeout
	}
	if c.MaxCommitRetries <= 0 {
		c.MaxCommitRetries = d.MaxCommitRetries
	}
	if c.AuditPageSize <= 0 {
		c.AuditPageSize = d.AuditPageSize
	}
	if c.AuditPageSize > maxAuditPageSize {
		c.AuditPageSize = maxAuditPageSize
	}
	return c
}

func (c Config) isTrusted(actorID string) bool {
	for _, t := range c.TrustedOperators {
		if t == actorID {
			return true
		}
	}
	return false
}
