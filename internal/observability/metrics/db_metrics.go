package metrics

import (
	"database/sql"
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "settlements_pending",
			Help: "Settlements not yet in the SETTLED state",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM settlements WHERE settlement_status <> 'SETTLED'")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "settlements_unnotified",
			Help: "Settled settlements whose callback has not fired yet",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM settlements WHERE settlement_status = 'SETTLED' AND NOT on_settle_notified")
		},
	))
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
