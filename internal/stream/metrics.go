package stream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsProcessedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nqlflow_events_processed_total",
			Help: "Events taken off the backlog and run through the queries.",
		},
	)
	eventsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nqlflow_events_dropped_total",
			Help: "Events rejected because the backlog was full.",
		},
	)
	queryMatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nqlflow_query_matches_total",
			Help: "Events that satisfied a query, by query name.",
		},
		[]string{"query"},
	)
	queryFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nqlflow_query_failures_total",
			Help: "Queries disabled after an execution failure, by query name.",
		},
		[]string{"query"},
	)
	backlogEvents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nqlflow_backlog_events",
			Help: "Events waiting in the runner backlog.",
		},
	)
)
