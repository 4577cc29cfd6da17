package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles settlement poller metrics.
type Metrics struct {
	Cycles        prometheus.Counter
	CycleDuration prometheus.Histogram
	Checked       prometheus.Counter
	Updated       prometheus.Counter
	NewlySettled  prometheus.Counter
	Notifications *prometheus.CounterVec
	Errors        prometheus.Counter
}

// New constructs and registers metrics.
func New() *Metrics {
	m := &Metrics{
		Cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trading_settlement_poll_cycles_total",
			Help: "Total settlement poll cycles",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trading_settlement_poll_cycle_duration_seconds",
			Help:    "Settlement poll cycle duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		Checked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trading_settlements_checked_total",
			Help: "Total settlements checked against the ledger",
		}),
		Updated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trading_settlements_updated_total",
			Help: "Total settlements updated from ledger data",
		}),
		NewlySettled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trading_settlements_settled_total",
			Help: "Total settlements reaching the SETTLED state",
		}),
		Notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trading_settlement_notifications_total",
				Help: "Total on-settle callback deliveries by result",
			},
			[]string{"result"},
		),
		Errors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trading_settlement_poll_errors_total",
			Help: "Total per-settlement errors during poll cycles",
		}),
	}
	prometheus.MustRegister(
		m.Cycles,
		m.CycleDuration,
		m.Checked,
		m.Updated,
		m.NewlySettled,
		m.Notifications,
		m.Errors,
	)
	return m
}
