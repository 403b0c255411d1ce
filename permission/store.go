package permission

import (
	"context"

	"github.com/xraph/bastion/role"
)

// Store defines read access to the role permission catalog. Writes go through
// the composite store's commit operation so that they land together with
// their audit records.
type Store interface {
	// GetRolePermissionSet returns the stored set for a role. Backends return
	// an error wrapping store.ErrNotFound when nothing is stored.
	GetRolePermissionSet(ctx context.Context, r role.Name) (*Set, error)

	// ListRolePermissionSets returns stored sets matching the filter.
	ListRolePermissionSets(ctx context.Context, filter *ListFilter) ([]*Set, error)
}
