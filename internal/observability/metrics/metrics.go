package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "energy_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	runTotal   *prometheus.CounterVec
	runLatency *prometheus.HistogramVec

	sourceFetchTotal *prometheus.CounterVec
	sourceRecords    *prometheus.CounterVec

	ingestRequests *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec

	reportGenerated prometheus.Gauge
	usageAge        prometheus.Gauge

	exportTotal *prometheus.CounterVec
	sinkErrors  *prometheus.CounterVec
)

// Init registers the metrics and, when db is set, row count gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		runTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "run_total",
				Help: "Total pipeline runs by result",
			},
			[]string{"result"},
		)
		runLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "run_latency_seconds",
				Help:    "Pipeline run latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		sourceFetchTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "source_fetch_total",
				Help: "Total data source fetch attempts by source and result",
			},
			[]string{"source", "result"},
		)
		sourceRecords = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "source_records_total",
				Help: "Records merged from data sources by source and series",
			},
			[]string{"source", "series"},
		)

		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total batch uploads by result",
			},
			[]string{"result"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Batch upload latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		reportGenerated = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "report_generated_timestamp_seconds",
			Help: "Unix time of the last generated report",
		})
		usageAge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "usage_age_hours",
			Help: "Hours since the last day with usage data ended",
		})

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total report exports by format and result",
			},
			[]string{"format", "result"},
		)
		sinkErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sink_errors_total",
				Help: "Report sink failures by sink",
			},
			[]string{"sink"},
		)

		prometheus.MustRegister(
			runTotal,
			runLatency,
			sourceFetchTotal,
			sourceRecords,
			ingestRequests,
			ingestLatency,
			reportGenerated,
			usageAge,
			exportTotal,
			sinkErrors,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveRun records run duration and result.
func ObserveRun(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if runTotal != nil {
		runTotal.WithLabelValues(result).Inc()
	}
	if runLatency != nil {
		runLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveIngest records upload duration and result.
func ObserveIngest(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if ingestRequests != nil {
		ingestRequests.WithLabelValues(result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// SetReportGenerated records the generation time and the age of the newest usage.
func SetReportGenerated(at time.Time, usageAgeHours float64) {
	if reportGenerated != nil {
		reportGenerated.Set(float64(at.Unix()))
	}
	if usageAge != nil {
		usageAge.Set(usageAgeHours)
	}
}

// IncSinkError counts a failed report sink.
func IncSinkError(sink string) {
	if sink == "" {
		sink = "unknown"
	}
	if sinkErrors != nil {
		sinkErrors.WithLabelValues(sink).Inc()
	}
}

// Recorder adapts the package counters to the collaborator interfaces of the loader
// and the report handlers.
type Recorder struct{}

// ObserveFetch counts one fetch attempt.
func (Recorder) ObserveFetch(source string, err error) {
	if source == "" {
		source = "unknown"
	}
	if sourceFetchTotal != nil {
		sourceFetchTotal.WithLabelValues(source, result(err)).Inc()
	}
}

// ObserveRecords counts merged records.
func (Recorder) ObserveRecords(source, series string, count int) {
	if count <= 0 || sourceRecords == nil {
		return
	}
	sourceRecords.WithLabelValues(source, series).Add(float64(count))
}

// ObserveExport counts one rendered export.
func (Recorder) ObserveExport(format string, err error) {
	if format == "" {
		format = "unknown"
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result(err)).Inc()
	}
}

func result(err error) string {
	if err != nil {
		return resultError
	}
	return resultSuccess
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
