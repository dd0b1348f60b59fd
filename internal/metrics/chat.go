package metrics

import "github.com/prometheus/client_golang/prometheus"

// Chat completion Prometheus metrics.
var (
	ChatCompletionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "chat_completions_total",
			Help:      "Total chat completion requests",
		},
		[]string{"model", "status"},
	)

	ChatTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "chat_tokens_total",
			Help:      "Total chat tokens consumed",
		},
		[]string{"model", "type"},
	)
)
