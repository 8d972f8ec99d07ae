package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// METRICS - Register-level counters exposed on /metrics
// =============================================================================

// Metrics collects settlement activity for the ops dashboard.
type Metrics struct {
	Settlements   *prometheus.CounterVec
	Exchanges     prometheus.Counter
	Cancellations prometheus.Counter
	GateRejects   *prometheus.CounterVec
}

// NewMetrics registers the canteen counters on reg. Pass
// prometheus.NewRegistry() in tests to avoid global registration
// conflicts.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Settlements: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "canteen_settlements_total",
			Help: "Settled checkouts by payment method.",
		}, []string{"method"}),
		Exchanges: factory.NewCounter(prometheus.CounterOpts{
			Name: "canteen_exchanges_total",
			Help: "Settled exchanges.",
		}),
		Cancellations: factory.NewCounter(prometheus.CounterOpts{
			Name: "canteen_cancellations_total",
			Help: "Transactions marked cancelled.",
		}),
		GateRejects: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "canteen_settlement_rejects_total",
			Help: "Settlements rejected by a policy gate.",
		}, []string{"reason"}),
	}
}
