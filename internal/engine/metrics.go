package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modelrt",
			Subsystem: "engine",
			Name:      "generations_total",
			Help:      "Finished decode loops by finish reason",
		},
		[]string{"finish_reason"},
	)

	tokensGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "modelrt",
			Subsystem: "engine",
			Name:      "tokens_generated_total",
			Help:      "Tokens sampled across all generations",
		},
	)

	samplingFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "modelrt",
			Subsystem: "engine",
			Name:      "sampling_fallbacks_total",
			Help:      "Steps where a collapsed distribution fell back to argmax",
		},
	)

	generationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "modelrt",
			Subsystem: "engine",
			Name:      "generation_duration_seconds",
			Help:      "Wall time of decode loops",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(generationsTotal, tokensGenerated, samplingFallbacks, generationDuration)
}
