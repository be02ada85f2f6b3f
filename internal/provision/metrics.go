package provision

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts provisioning outcomes.
type Metrics struct {
	prepared prometheus.Counter
	rejected *prometheus.CounterVec
	minted   prometheus.Counter
	failed   prometheus.Counter
	refunds  *prometheus.CounterVec

	settleFailures *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them when reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		prepared: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ranger",
			Name:      "positions_prepared_total",
			Help:      "Positions whose tick range passed every check.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ranger",
			Name:      "positions_rejected_total",
			Help:      "Positions rejected before any funds moved, by reason.",
		}, []string{"reason"}),
		minted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ranger",
			Name:      "positions_minted_total",
			Help:      "Positions minted.",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ranger",
			Name:      "mints_failed_total",
			Help:      "Mint calls that failed after custody was taken.",
		}),
		refunds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ranger",
			Name:      "excess_refunds_total",
			Help:      "Excess token refunds, by token.",
		}, []string{"token"}),
		settleFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ranger",
			Name:      "settle_failures_total",
			Help:      "Transfers to the pool or refunds to the payer that failed after a successful mint, by stage.",
		}, []string{"stage"}),
	}
	if reg != nil {
		reg.MustRegister(m.prepared, m.rejected, m.minted, m.failed, m.refunds, m.settleFailures)
	}
	return m
}
