// Package store defines the aggregate persistence interface. Each subsystem
// (assignment, permission, audit) defines its own read interface; the
// composite Store adds the atomic commit operations that write state and its
// audit records together. Backends: Memory, Postgres, SQLite and MongoDB.
package store

import (
	"context"
	"errors"

	"github.com/xraph/bastion/assignment"
	"github.com/xraph/bastion/audit"
	"github.com/xraph/bastion/permission"
)

var (
	// ErrNotFound is wrapped by backends when a requested record is absent.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict is returned by a commit whose expected version no longer
	// matches the stored one. Callers reload and retry.
	ErrConflict = errors.New("store: version conflict")
)

// Store is the aggregate persistence interface.
type Store interface {
	assignment.Store
	permission.Store
	audit.Store

	// CommitAssignment stores a and appends records in one atomic step.
	// The stored version must equal a.Version-1; a.Version of 1 creates the
	// record. Records receive their Seq and hash chain links from the backend.
	CommitAssignment(ctx context.Context, a *assignment.Assignment, records []*audit.Record) error

	// CommitRolePermissionSet is CommitAssignment for a role's catalog entry.
	CommitRolePermissionSet(ctx context.Context, s *permission.Set, records []*audit.Record) error

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
