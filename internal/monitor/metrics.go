package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	submittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinsentry_monitor_submitted_total",
		Help: "Mentions submitted to the pipeline by outcome.",
	}, []string{"source", "outcome"})

	eventsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coinsentry_monitor_events_dropped_total",
		Help: "Notification events dropped because the subscriber lagged.",
	})
)
