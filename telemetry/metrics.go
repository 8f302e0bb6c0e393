// Package telemetry registers the Prometheus metrics exposed on /metrics.
//
// HTTP metrics are labelled by chi route pattern (e.g. /records/{id}) rather
// than the raw URL so record IDs do not create unbounded label cardinality.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memorial_http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route pattern, and status code.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "memorial_http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route pattern.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route"},
	)

	// ImportRowsTotal counts spreadsheet rows by outcome: "added" or "skipped".
	ImportRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memorial_import_rows_total",
			Help: "Rows processed by bulk import, by outcome.",
		},
		[]string{"outcome"},
	)

	// SearchesTotal counts searches by mode ("exact" or "fuzzy") and whether anything matched.
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memorial_searches_total",
			Help: "Searches performed, by mode and result.",
		},
		[]string{"mode", "result"},
	)

	// AuditEntriesTotal counts audit log appends that committed.
	AuditEntriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "memorial_audit_entries_total",
			Help: "Audit log entries written.",
		},
	)
)
