package delivery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sendTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinsentry_delivery_send_total",
		Help: "Channel send attempts by outcome.",
	}, []string{"channel", "outcome"})

	sendDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "coinsentry_delivery_send_duration_seconds",
		Help:    "Latency of individual channel sends.",
		Buckets: prometheus.DefBuckets,
	}, []string{"channel"})

	escalatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coinsentry_delivery_escalated_total",
		Help: "Notifications routed as high priority due to keyword escalation.",
	})
)
