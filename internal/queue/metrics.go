package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	enqueuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinsentry_queue_enqueued_total",
		Help: "Notifications admitted to the delivery queue.",
	}, []string{"priority"})

	failedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinsentry_queue_failed_total",
		Help: "Delivery jobs that exhausted their attempts.",
	}, []string{"priority"})

	retriedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coinsentry_queue_retried_total",
		Help: "Delivery jobs requeued with backoff.",
	})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coinsentry_queue_depth",
		Help: "Jobs currently waiting in the delivery queue.",
	})
)
