package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// storedTables are the Postgres tables exposed as energy_stored_rows{table=...}.
var storedTables = []string{"energy_values", "energy_reports", "audit_logs"}

const countTimeout = 5 * time.Second

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	for _, table := range storedTables {
		prometheus.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name:        metricPrefix + "stored_rows",
				Help:        "Rows stored per table",
				ConstLabels: prometheus.Labels{"table": table},
			},
			func() float64 { return storedRows(db, logger, table) },
		))
	}
}

// storedRows counts the rows of table; any failure reads as zero.
func storedRows(db *sql.DB, logger *log.Logger, table string) float64 {
	if db == nil {
		return 0
	}
	ctx, cancel := context.WithTimeout(context.Background(), countTimeout)
	defer cancel()
	var count int64
	if err := db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics count error: table=%s err=%v", table, err)
		}
		return 0
	}
	return float64(max(count, 0))
}
