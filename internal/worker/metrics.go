package worker

import "github.com/prometheus/client_golang/prometheus"

var (
	callsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modelrt",
			Subsystem: "worker",
			Name:      "calls_total",
			Help:      "Calls executed by the worker by method and outcome",
		},
		[]string{"method", "outcome"},
	)

	callDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "modelrt",
			Subsystem: "worker",
			Name:      "call_duration_seconds",
			Help:      "Execution time of worker calls",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	queueWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "modelrt",
			Subsystem: "worker",
			Name:      "queue_wait_seconds",
			Help:      "Time calls spent queued before execution",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(callsTotal, callDuration, queueWait)
}
