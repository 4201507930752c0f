// Package metrics exposes Prometheus collectors for the ingestion pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Transport label values.
const (
	TransportSocket = "socket"
	TransportHTTP   = "http"
)

// Rejection reason label values.
const (
	ReasonAccessDenied = "access_denied"
	ReasonMalformed    = "malformed"
	ReasonInternal     = "internal"
)

// Enrichment outcome label values.
const (
	EnrichmentResolved    = "resolved"
	EnrichmentUnavailable = "unavailable"
	EnrichmentSkipped     = "skipped"
)

var (
	ReportsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catcher",
		Name:      "reports_received_total",
		Help:      "Reports accepted off a transport, before any processing.",
	}, []string{"transport"})

	ReportsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catcher",
		Name:      "reports_rejected_total",
		Help:      "Reports that terminated without a persisted event.",
	}, []string{"transport", "reason"})

	EventsPersisted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catcher",
		Name:      "events_persisted_total",
		Help:      "Events written to the event store.",
	}, []string{"type"})

	Enrichment = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catcher",
		Name:      "enrichment_total",
		Help:      "Source map resolution outcomes per report.",
	}, []string{"outcome"})

	NotifyFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "catcher",
		Name:      "notify_failures_total",
		Help:      "Notification dispatches that failed (best effort, not fatal).",
	})

	ProcessingSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "catcher",
		Name:      "report_processing_seconds",
		Help:      "Wall time of one full pipeline run per report.",
		Buckets:   prometheus.DefBuckets,
	})
)
