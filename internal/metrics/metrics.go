// Package metrics defines the Prometheus instruments exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsProcessed counts notifications dispatched to collectors.
	EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "landscaper_events_processed_total",
		Help: "Number of infrastructure events dispatched to collectors.",
	}, []string{"event"})

	// EventErrors counts events whose handling failed.
	EventErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "landscaper_event_errors_total",
		Help: "Number of infrastructure events that failed to apply.",
	}, []string{"event"})

	// CollectorRuns counts full collection passes per collector.
	CollectorRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "landscaper_collector_runs_total",
		Help: "Number of completed collector passes.",
	}, []string{"collector"})

	// GraphQueryDuration observes the latency of landscape queries.
	GraphQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "landscaper_graph_query_duration_seconds",
		Help:    "Latency of graph queries served by the API.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)
