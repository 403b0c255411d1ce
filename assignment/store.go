package assignment

import "context"

// Store defines read access to actor assignments. Writes go through the
// composite store's commit operation.
type Store interface {
	// GetAssignment retrieves the record of an actor. Backends return an
	// error wrapping store.ErrNotFound when none is stored.
	GetAssignment(ctx context.Context, actorID string) (*Assignment, error)

	// ListAssignments returns records matching the filter, ordered by actor ID.
	ListAssignments(ctx context.Context, filter *ListFilter) ([]*Assignment, error)

	// CountAssignments returns the number of records matching the filter.
	CountAssignments(ctx context.Context, filter *ListFilter) (int64, error)
}
