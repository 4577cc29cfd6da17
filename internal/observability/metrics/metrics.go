package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "trading_"

	// ResultSuccess labels a successful operation.
	ResultSuccess = "success"
	// ResultError labels a failed operation.
	ResultError = "error"
	// ResultRejected labels a business rejection, as distinct from an
	// operational failure.
	ResultRejected = "rejected"
)

var (
	registerOnce sync.Once

	ledgerRequests *prometheus.CounterVec
	ledgerLatency  *prometheus.HistogramVec
	ledgerRetries  prometheus.Counter

	inventoryReductions *prometheus.CounterVec
	inventoryRejections prometheus.Counter

	limitChecks     *prometheus.CounterVec
	limitRejections *prometheus.CounterVec
)

// Init registers trading-integrity metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		ledgerRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ledger_requests_total",
				Help: "Total ledger queries by result",
			},
			[]string{"result"},
		)
		ledgerLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ledger_request_latency_seconds",
				Help:    "Ledger query latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		ledgerRetries = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "ledger_retries_total",
				Help: "Total ledger query retry attempts",
			},
		)

		inventoryReductions = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "inventory_reductions_total",
				Help: "Total inventory decrement operations by result",
			},
			[]string{"result"},
		)
		inventoryRejections = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "inventory_insufficient_total",
				Help: "Total decrements rejected for insufficient inventory",
			},
		)

		limitChecks = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "limit_checks_total",
				Help: "Total trading limit validations by side and result",
			},
			[]string{"side", "result"},
		)
		limitRejections = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "limit_rejections_total",
				Help: "Total trading limit rejections by side",
			},
			[]string{"side"},
		)

		prometheus.MustRegister(
			ledgerRequests,
			ledgerLatency,
			ledgerRetries,
			inventoryReductions,
			inventoryRejections,
			limitChecks,
			limitRejections,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveLedgerQuery records a ledger query duration and result.
func ObserveLedgerQuery(result string, duration time.Duration) {
	if result == "" {
		result = ResultSuccess
	}
	if ledgerRequests != nil {
		ledgerRequests.WithLabelValues(result).Inc()
	}
	if ledgerLatency != nil {
		ledgerLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncLedgerRetry increments the ledger retry counter.
func IncLedgerRetry() {
	if ledgerRetries != nil {
		ledgerRetries.Inc()
	}
}

// ObserveInventoryReduce records an inventory decrement result.
func ObserveInventoryReduce(result string) {
	if result == "" {
		result = ResultSuccess
	}
	if inventoryReductions != nil {
		inventoryReductions.WithLabelValues(result).Inc()
	}
}

// IncInventoryInsufficient increments the insufficient-inventory counter.
func IncInventoryInsufficient() {
	if inventoryRejections != nil {
		inventoryRejections.Inc()
	}
}

// ObserveLimitCheck records a limit validation by side and result.
func ObserveLimitCheck(side, result string) {
	if side == "" {
		side = "unknown"
	}
	if result == "" {
		result = ResultSuccess
	}
	if limitChecks != nil {
		limitChecks.WithLabelValues(side, result).Inc()
	}
}

// IncLimitRejection increments the limit rejection counter for a side.
func IncLimitRejection(side string) {
	if side == "" {
		side = "unknown"
	}
	if limitRejections != nil {
		limitRejections.WithLabelValues(side).Inc()
	}
}
