package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExchangesTotal counts completed chat exchanges by upstream wire
	// format and invocation outcome.
	ExchangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatwidget",
		Subsystem: "gateway",
		Name:      "exchanges_total",
		Help:      "Completed chat exchanges by request format and outcome.",
	}, []string{"format", "outcome"})

	// UpstreamDuration observes wall time of upstream invocations.
	UpstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "chatwidget",
		Subsystem: "gateway",
		Name:      "upstream_duration_seconds",
		Help:      "Duration of upstream invocations by request format.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"format"})

	// PersistenceFailures counts swallowed message-store write failures.
	PersistenceFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatwidget",
		Subsystem: "gateway",
		Name:      "persistence_failures_total",
		Help:      "Message pair writes that failed and were dropped.",
	})
)
