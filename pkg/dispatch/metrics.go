// pkg/dispatch/metrics.go
package dispatch

import "github.com/prometheus/client_golang/prometheus"

var (
	submitOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "nanobridge_submit_outcomes_total", Help: "submit terminal states by outcome"},
		[]string{"outcome"},
	)

	submitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nanobridge_submit_duration_seconds",
			Help:    "time from submit to terminal state.",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
		},
	)
)

func init() {
	prometheus.MustRegister(
		submitOutcomes,
		submitDuration,
	)
}
