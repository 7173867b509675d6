// Package metrics exposes Prometheus collectors for cycle throughput, order
// submission, and capital-gate behavior — the handful of numbers an operator
// actually watches across a run, not a per-module sprawl.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collectors bundles every metric this core registers, constructed once at
// startup and threaded through the orchestrator, executor, trailing engine,
// and market-data manager.
type Collectors struct {
	registry *prometheus.Registry

	CycleDuration     *prometheus.HistogramVec
	CycleEntries      prometheus.Counter
	CycleExits        prometheus.Counter
	GatesRejected     *prometheus.CounterVec
	OrdersSubmitted   *prometheus.CounterVec
	OrderSubmitErrors *prometheus.CounterVec
	ProviderFallbacks *prometheus.CounterVec
	TrailingRatchets  *prometheus.CounterVec
	OpenPlays         *prometheus.GaugeVec
}

func New() *Collectors {
	registry := prometheus.NewRegistry()

	c := &Collectors{
		registry: registry,
		CycleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "goldcore_cycle_duration_seconds",
				Help:    "Wall-clock duration of one orchestrator cycle",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"mode"}, // sequential | parallel
		),
		CycleEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goldcore_cycle_entries_opened_total",
			Help: "Total entry orders opened across all cycles",
		}),
		CycleExits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goldcore_cycle_exits_submitted_total",
			Help: "Total exit orders submitted across all cycles",
		}),
		GatesRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goldcore_capital_gate_rejections_total",
				Help: "Candidate plays rejected by the capital manager, by gate",
			},
			[]string{"gate"},
		),
		OrdersSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goldcore_orders_submitted_total",
				Help: "Orders submitted to the broker, by side and order type",
			},
			[]string{"side", "order_type"},
		),
		OrderSubmitErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goldcore_order_submit_errors_total",
				Help: "Order submission failures, by broker error class",
			},
			[]string{"reason"},
		),
		ProviderFallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goldcore_provider_fallbacks_total",
				Help: "Times the market-data manager fell through to a secondary provider",
			},
			[]string{"kind"}, // stock_price | option_quote | option_chain | expirations | historical_bars
		),
		TrailingRatchets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goldcore_trailing_ratchets_total",
				Help: "End-of-day trailing stop ratchet proposals, by acceptance",
			},
			[]string{"accepted"},
		),
		OpenPlays: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "goldcore_open_plays",
				Help: "Current number of OPEN plays, by playbook",
			},
			[]string{"playbook"},
		),
	}

	registry.MustRegister(
		c.CycleDuration,
		c.CycleEntries,
		c.CycleExits,
		c.GatesRejected,
		c.OrdersSubmitted,
		c.OrderSubmitErrors,
		c.ProviderFallbacks,
		c.TrailingRatchets,
		c.OpenPlays,
	)
	return c
}

// Registry returns the registry backing these collectors, for mounting at
// /metrics via promhttp.HandlerFor.
func (c *Collectors) Registry() *prometheus.Registry {
	return c.registry
}
