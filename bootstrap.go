package bastion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/role"
)

// trustedRoles is the role set every trusted operator is provisioned with.
var trustedRoles = role.MustSet(role.Dev, role.Manager)

// BootstrapReport summarizes one BootstrapSync pass.
type BootstrapReport struct {
	RunID      id.ID             `json:"run_id"`
	Granted    []string          `json:"granted"`
	Unchanged  []string          `json:"unchanged"`
	Failed     map[string]string `json:"failed,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}

// BootstrapSync provisions each operator with exactly {Dev, Manager} and
// marks the record locked. It runs as the system actor, so hierarchy checks
// do not apply, and it processes operators one at a time. Operators already
// holding exactly that set, locked, are left untouched, which makes repeated
// passes write no audit records.
//
// A failure for one operator does not stop the pass; all failures are
// returned joined.
func (e *Engine) BootstrapSync(ctx context.Context, operators []string) (*BootstrapReport, error) {
	report := &BootstrapReport{
		RunID:     id.NewBootstrapID(),
		StartedAt: e.now(),
	}
	ctx = WithReason(ctx, "bootstrap "+report.RunID.String())

	seen := make(map[string]struct{}, len(operators))
	var errs []error
	for _, op := range operators {
		if op == "" {
			continue
		}
		if _, dup := seen[op]; dup {
			continue
		}
		seen[op] = struct{}{}

		before, after, err := e.commitRoles(ctx, systemPrincipal, op, roleChange{roles: trustedRoles, lock: true})
		if err != nil {
			if report.Failed == nil {
				report.Failed = make(map[string]string)
			}
			report.Failed[op] = err.Error()
			errs = append(errs, fmt.Errorf("bootstrap %s: %w", op, err))
			continue
		}

		current := after
		if current == nil {
			current = before
			report.Unchanged = append(report.Unchanged, op)
		} else {
			report.Granted = append(report.Granted, op)
			e.logger.Info("trusted operator provisioned",
				slog.String("actor_id", op),
				slog.String("run_id", report.RunID.String()),
			)
		}
		if current != nil {
			e.fallback.Remember(ctx, current)
		}
	}
	report.FinishedAt = e.now()

	e.plugins.EmitBootstrapCompleted(ctx, report)
	return report, errors.Join(errs...)
}
