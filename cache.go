package bastion

import (
	"context"

	"github.com/xraph/bastion/assignment"
	"github.com/xraph/bastion/cache"
)

// Fallback keeps the last known-good records of trusted operators. While the
// store is unreachable only these actors (and the super admin) may act.
type Fallback interface {
	// Remember stores a copy of a.
	Remember(ctx context.Context, a *assignment.Assignment)

	// Recall returns the stored record of an actor.
	Recall(ctx context.Context, actorID string) (*assignment.Assignment, bool)

	// Forget drops the stored record of an actor.
	Forget(ctx context.Context, actorID string)
}

// Compile-time interface check.
var _ Fallback = (*cache.Memory)(nil)
