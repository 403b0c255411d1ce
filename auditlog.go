package bastion

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/xraph/bastion/audit"
)

// ListAudit returns one page of audit records in ascending sequence order.
// The page size defaults to Config.AuditPageSize and never exceeds 1000.
// Pass the Seq of the last record as AfterSeq to fetch the next page.
func (e *Engine) ListAudit(ctx context.Context, filter *audit.QueryFilter) ([]*audit.Record, error) {
	f := audit.QueryFilter{}
	if filter != nil {
		f = *filter
	}
	switch f.EntityType {
	case "", audit.EntityActor, audit.EntityRole:
	default:
		return nil, fmt.Errorf("%w: unknown entity type %q", ErrValidation, f.EntityType)
	}
	if f.AfterSeq < 0 {
		return nil, fmt.Errorf("%w: negative cursor", ErrValidation)
	}
	if f.Limit <= 0 {
		f.Limit = e.config.AuditPageSize
	}
	if f.Limit > maxAuditPageSize {
		f.Limit = maxAuditPageSize
	}

	var records []*audit.Record
	err := e.call(ctx, "list_audit", func(ctx context.Context) error {
		var err error
		records, err = e.store.ListAudit(ctx, &f)
		return err
	})
	return records, err
}

// AuditIterator lazily walks every record matching filter, one page at a
// time. Iteration stops at the first error, which is yielded once. The
// sequence can be restarted from any record by setting filter.AfterSeq.
func (e *Engine) AuditIterator(ctx context.Context, filter audit.QueryFilter) iter.Seq2[*audit.Record, error] {
	return func(yield func(*audit.Record, error) bool) {
		f := filter
		if f.Limit <= 0 {
			f.Limit = e.config.AuditPageSize
		}
		f.Limit = min(f.Limit, maxAuditPageSize)
		for {
			page, err := e.ListAudit(ctx, &f)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, r := range page {
				if !yield(r, nil) {
					return
				}
				f.AfterSeq = r.Seq
			}
			if len(page) < f.Limit {
				return
			}
		}
	}
}

// AuditVerification is the outcome of a full hash chain check.
type AuditVerification struct {
	Records  int64  `json:"records"`
	HeadSeq  int64  `json:"head_seq"`
	HeadHash string `json:"head_hash"`
}

// VerifyAudit walks the whole audit log and checks its hash chain. A broken
// chain yields an error wrapping audit.ErrChainBroken.
func (e *Engine) VerifyAudit(ctx context.Context) (*AuditVerification, error) {
	var (
		res  AuditVerification
		seq  int64
		prev string
	)
	f := audit.QueryFilter{Limit: maxAuditPageSize}
	for {
		page, err := e.ListAudit(ctx, &f)
		if err != nil {
			return nil, err
		}
		seq, prev, err = audit.Verify(page, seq, prev)
		if err != nil {
			e.logger.Error("audit chain verification failed", slog.String("error", err.Error()))
			return nil, err
		}
		res.Records += int64(len(page))
		if len(page) < f.Limit {
			break
		}
		f.AfterSeq = seq
	}

	head, err := e.auditHead(ctx)
	if err != nil {
		return nil, err
	}
	if head != nil && (head.Seq != seq || head.Hash != prev) {
		return nil, fmt.Errorf("%w: head seq %d not reached by the chain", audit.ErrChainBroken, head.Seq)
	}
	res.HeadSeq, res.HeadHash = seq, prev
	return &res, nil
}
