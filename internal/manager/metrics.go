package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	loadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modelrt",
			Subsystem: "manager",
			Name:      "loads_total",
			Help:      "Load attempts by result",
		},
		[]string{"result"},
	)

	unloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modelrt",
			Subsystem: "manager",
			Name:      "unloads_total",
			Help:      "Completed unloads by result",
		},
		[]string{"result"},
	)

	loadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "modelrt",
			Subsystem: "manager",
			Name:      "load_duration_seconds",
			Help:      "Backend allocation time for successful loads",
			Buckets:   prometheus.DefBuckets,
		},
	)

	sessionsLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "modelrt",
			Subsystem: "manager",
			Name:      "sessions_loaded",
			Help:      "Live sessions",
		},
	)

	admissionRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modelrt",
			Subsystem: "manager",
			Name:      "admission_rejections_total",
			Help:      "Generation admissions rejected with too busy",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(loadsTotal, unloadsTotal, loadDuration, sessionsLoaded, admissionRejections)
}
