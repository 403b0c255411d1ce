package audit

import "context"

// Store defines read access to the audit log. Records are appended only by
// the composite store's commit operations; there is no update or delete.
type Store interface {
	// ListAudit returns records matching the filter in ascending Seq order.
	ListAudit(ctx context.Context, filter *QueryFilter) ([]*Record, error)

	// LastAudit returns the most recent record. Backends return an error
	// wrapping store.ErrNotFound when the log is empty.
	LastAudit(ctx context.Context) (*Record, error)
}
