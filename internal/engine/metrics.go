package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pairsComputed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pdist_pairs_computed_total",
		Help: "Total number of row pairs reduced to a distance",
	})

	computeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pdist_compute_duration_seconds",
		Help:    "Wall time of a full parallel distance computation",
		Buckets: prometheus.DefBuckets,
	})

	activeUnits = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pdist_active_units",
		Help: "Compute units used by the most recent launch",
	})
)
