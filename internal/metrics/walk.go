package metrics

import "github.com/prometheus/client_golang/prometheus"

// Drift walk and one-shot search Prometheus metrics.
var (
	WalksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "walks_total",
			Help:      "Completed walks by score mode and outcome (halt reason or error)",
		},
		[]string{"mode", "outcome"},
	)

	WalkSteps = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "walk_steps",
			Help:      "Number of accepted documents per walk",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 50, 100},
		},
		[]string{"mode"},
	)

	WalkDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "walk_duration_seconds",
			Help:      "Wall time of a walk including provider calls",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"mode"},
	)

	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "searches_total",
			Help:      "One-shot top-K searches by outcome",
		},
		[]string{"outcome"},
	)
)
