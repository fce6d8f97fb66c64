package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ReportMetrics contains Prometheus metrics for the reporting engine.
type ReportMetrics struct {
	QueriesTotal  *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
}

// NewReportMetrics creates and registers reporting engine metrics.
func NewReportMetrics(namespace string) *ReportMetrics {
	m := &ReportMetrics{
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "report",
				Name:      "queries_total",
				Help:      "Total number of report queries executed",
			},
			[]string{"report", "status"}, // status: success, error
		),
		QueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "report",
				Name:      "query_duration_seconds",
				Help:      "Duration of report queries",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"report"},
		),
	}

	MustRegister(m.QueriesTotal, m.QueryDuration)

	return m
}
