package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// IngestMetrics contains Prometheus metrics for the ingestion pipeline.
type IngestMetrics struct {
	RowsTotal        *prometheus.CounterVec
	ParseErrorsTotal prometheus.Counter
	BatchDuration    prometheus.Histogram
	UpsertDuration   *prometheus.HistogramVec
}

// NewIngestMetrics creates and registers ingestion pipeline metrics.
func NewIngestMetrics(namespace string) *IngestMetrics {
	m := &IngestMetrics{
		RowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "rows_total",
				Help:      "Total number of survey rows processed",
			},
			[]string{"outcome"}, // outcome: upserted, modified, matched, failed
		),
		ParseErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "parse_errors_total",
				Help:      "Total number of field-level parse errors absorbed as nulls",
			},
		),
		BatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "batch_duration_seconds",
				Help:      "Duration of a full ingestion batch",
				Buckets:   prometheus.DefBuckets,
			},
		),
		UpsertDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "upsert_duration_seconds",
				Help:      "Duration of individual plot upserts",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"}, // operation: insert, update, noop
		),
	}

	MustRegister(
		m.RowsTotal,
		m.ParseErrorsTotal,
		m.BatchDuration,
		m.UpsertDuration,
	)

	return m
}
