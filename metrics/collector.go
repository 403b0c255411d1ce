// Package metrics exports Bastion decisions and mutations as Prometheus
// metrics. The Collector is a plugin: register it with bastion.WithPlugin.
package metrics

import (
	"context"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xraph/bastion"
	"github.com/xraph/bastion/assignment"
	"github.com/xraph/bastion/permission"
	"github.com/xraph/bastion/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin             = (*Collector)(nil)
	_ plugin.AfterResolve       = (*Collector)(nil)
	_ plugin.RolesChanged       = (*Collector)(nil)
	_ plugin.DeniedChanged      = (*Collector)(nil)
	_ plugin.CatalogChanged     = (*Collector)(nil)
	_ plugin.BootstrapCompleted = (*Collector)(nil)
	_ plugin.InfraFailure       = (*Collector)(nil)
)

// Collector holds all Bastion Prometheus metrics.
type Collector struct {
	Decisions         *prometheus.CounterVec
	RoleChanges       prometheus.Counter
	DenialChanges     prometheus.Counter
	CatalogChanges    *prometheus.CounterVec
	BootstrapRuns     prometheus.Counter
	BootstrapGranted  prometheus.Counter
	BootstrapFailures prometheus.Counter
	InfraFailures     *prometheus.CounterVec
}

// NewCollector creates the metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bastion_decisions_total",
				Help: "Total number of resolved commands by decision",
			},
			[]string{"decision", "namespace"},
		),
		RoleChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bastion_role_changes_total",
			Help: "Total number of committed role set changes",
		}),
		DenialChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bastion_denial_changes_total",
			Help: "Total number of committed denial list changes",
		}),
		CatalogChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bastion_catalog_changes_total",
				Help: "Total number of committed role permission set changes",
			},
			[]string{"role"},
		),
		BootstrapRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bastion_bootstrap_runs_total",
			Help: "Total number of bootstrap passes",
		}),
		BootstrapGranted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bastion_bootstrap_granted_total",
			Help: "Total number of trusted operators provisioned by bootstrap",
		}),
		BootstrapFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bastion_bootstrap_failures_total",
			Help: "Total number of trusted operators bootstrap failed to provision",
		}),
		InfraFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bastion_infra_failures_total",
				Help: "Total number of failed or timed out store calls",
			},
			[]string{"op"},
		),
	}
	reg.MustRegister(
		c.Decisions,
		c.RoleChanges,
		c.DenialChanges,
		c.CatalogChanges,
		c.BootstrapRuns,
		c.BootstrapGranted,
		c.BootstrapFailures,
		c.InfraFailures,
	)
	return c
}

// Name implements plugin.Plugin.
func (c *Collector) Name() string { return "metrics" }

// OnAfterResolve implements plugin.AfterResolve.
func (c *Collector) OnAfterResolve(_ context.Context, _, command string, result any) error {
	res, ok := result.(*bastion.Result)
	if !ok {
		return nil
	}
	ns, _, _ := strings.Cut(command, ".")
	c.Decisions.WithLabelValues(string(res.Decision), ns).Inc()
	return nil
}

// OnRolesChanged implements plugin.RolesChanged.
func (c *Collector) OnRolesChanged(context.Context, string, *assignment.Assignment, *assignment.Assignment) error {
	c.RoleChanges.Inc()
	return nil
}

// OnDeniedChanged implements plugin.DeniedChanged.
func (c *Collector) OnDeniedChanged(context.Context, string, *assignment.Assignment, *assignment.Assignment) error {
	c.DenialChanges.Inc()
	return nil
}

// OnCatalogChanged implements plugin.CatalogChanged.
func (c *Collector) OnCatalogChanged(_ context.Context, _ string, _, after *permission.Set) error {
	if after != nil {
		c.CatalogChanges.WithLabelValues(string(after.Role)).Inc()
	}
	return nil
}

// OnBootstrapCompleted implements plugin.BootstrapCompleted.
func (c *Collector) OnBootstrapCompleted(_ context.Context, report any) error {
	c.BootstrapRuns.Inc()
	if r, ok := report.(*bastion.BootstrapReport); ok {
		c.BootstrapGranted.Add(float64(len(r.Granted)))
		c.BootstrapFailures.Add(float64(len(r.Failed)))
	}
	return nil
}

// OnInfraFailure implements plugin.InfraFailure.
func (c *Collector) OnInfraFailure(_ context.Context, op string, _ error) error {
	c.InfraFailures.WithLabelValues(op).Inc()
	return nil
}
