package scan

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scanDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "coinsentry_scan_duration_seconds",
		Help:    "Duration of individual source scan passes.",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})

	scanErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinsentry_scan_errors_total",
		Help: "Scan passes that returned an error.",
	}, []string{"source"})

	scansSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinsentry_scans_skipped_total",
		Help: "Scan slots skipped due to overlap or capacity.",
	}, []string{"source", "reason"})

	fullScansSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coinsentry_full_scans_skipped_total",
		Help: "Full scans refused because scan capacity was exhausted.",
	})

	mentionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinsentry_scan_mentions_total",
		Help: "Mentions produced by source scans.",
	}, []string{"source"})
)
