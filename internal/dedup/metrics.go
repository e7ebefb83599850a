package dedup

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var dedupDroppedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "coinsentry_dedup_dropped_total",
		Help: "Mentions dropped because their (source, identifier) pair was already processed.",
	},
	[]string{"source"},
)
