package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg                *prometheus.Registry
	Loads              prometheus.Counter
	LoadFailures       prometheus.Counter
	LoadDurationSec    prometheus.Histogram
	RowsSkipped        prometheus.Counter
	RecordsLoaded      prometheus.Gauge
	Searches           prometheus.Counter
	SearchMatches      prometheus.Histogram
	UnsafeBulkRefused  prometheus.Counter
	NotificationsSent  *prometheus.CounterVec
	NotificationErrors *prometheus.CounterVec
	AuditWrites        prometheus.Counter
	AuditWriteFailures prometheus.Counter
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	loads := prometheus.NewCounter(prometheus.CounterOpts{Name: "orderdesk_loads_total"})
	loadFailures := prometheus.NewCounter(prometheus.CounterOpts{Name: "orderdesk_load_failures_total"})
	loadDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "orderdesk_load_duration_seconds",
		Buckets: prometheus.DefBuckets,
	})
	rowsSkipped := prometheus.NewCounter(prometheus.CounterOpts{Name: "orderdesk_rows_skipped_total"})
	recordsLoaded := prometheus.NewGauge(prometheus.GaugeOpts{Name: "orderdesk_records_loaded"})
	searches := prometheus.NewCounter(prometheus.CounterOpts{Name: "orderdesk_searches_total"})
	searchMatches := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "orderdesk_search_matches",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
	})
	unsafeBulk := prometheus.NewCounter(prometheus.CounterOpts{Name: "orderdesk_unsafe_bulk_refused_total"})
	sent := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "orderdesk_notifications_sent_total"}, []string{"channel"})
	sendErrors := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "orderdesk_notification_errors_total"}, []string{"channel"})
	auditWrites := prometheus.NewCounter(prometheus.CounterOpts{Name: "orderdesk_audit_writes_total"})
	auditFailures := prometheus.NewCounter(prometheus.CounterOpts{Name: "orderdesk_audit_write_failures_total"})

	r.MustRegister(loads, loadFailures, loadDuration, rowsSkipped, recordsLoaded, searches, searchMatches,
		unsafeBulk, sent, sendErrors, auditWrites, auditFailures)
	return &Registry{
		reg:                r,
		Loads:              loads,
		LoadFailures:       loadFailures,
		LoadDurationSec:    loadDuration,
		RowsSkipped:        rowsSkipped,
		RecordsLoaded:      recordsLoaded,
		Searches:           searches,
		SearchMatches:      searchMatches,
		UnsafeBulkRefused:  unsafeBulk,
		NotificationsSent:  sent,
		NotificationErrors: sendErrors,
		AuditWrites:        auditWrites,
		AuditWriteFailures: auditFailures,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
