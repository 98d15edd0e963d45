package watch

import "github.com/prometheus/client_golang/prometheus"

// Prometheus monitoring metrics.
var (
	metricChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitewatch_checks_total",
			Help: "Total number of availability checks by outcome.",
		},
		[]string{"outcome"},
	)
	metricProbeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sitewatch_probe_duration_seconds",
			Help:    "Probe round-trip time in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
	metricConsecutiveFailures = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sitewatch_consecutive_failures",
			Help: "Length of the current consecutive failure streak.",
		},
	)
	metricAvailability = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sitewatch_availability_percent",
			Help: "Lifetime availability percentage of the monitored endpoint.",
		},
	)
	metricNotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitewatch_notifications_total",
			Help: "Total subscriber notification deliveries by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(metricChecksTotal)
	prometheus.MustRegister(metricProbeDuration)
	prometheus.MustRegister(metricConsecutiveFailures)
	prometheus.MustRegister(metricAvailability)
	prometheus.MustRegister(metricNotificationsTotal)
}
