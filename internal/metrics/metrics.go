// Package metrics exposes dispatch counters for the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fidelize_messages_sent_total",
		Help: "Recipient tasks transitioned to sent.",
	})

	MessagesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fidelize_messages_failed_total",
		Help: "Recipient tasks transitioned to failed.",
	})

	MessagesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fidelize_messages_skipped_total",
		Help: "Recipient tasks skipped for opted-out phones.",
	})

	DispatchBatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fidelize_dispatch_batches_total",
		Help: "Batch dispatcher invocations that claimed at least one task.",
	})

	SendLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fidelize_send_latency_seconds",
		Help:    "Observed gateway round-trip per sent message.",
		Buckets: prometheus.DefBuckets,
	})
)
