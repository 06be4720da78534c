package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nbody_steps_total",
			Help: "Total number of simulation steps completed",
		},
		[]string{"implementation"},
	)

	StepErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nbody_step_errors_total",
			Help: "Total number of simulation steps that failed",
		},
		[]string{"implementation"},
	)

	StepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nbody_step_duration_seconds",
			Help:    "Duration of one acceleration and integration step",
			Buckets: prometheus.ExponentialBuckets(1e-5, 4, 12),
		},
		[]string{"implementation"},
	)

	Bodies = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nbody_bodies",
			Help: "Number of bodies in the running simulation",
		},
		[]string{"implementation"},
	)

	EnergyDriftGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nbody_energy_drift_ratio",
			Help: "Largest relative total energy deviation observed so far",
		},
		[]string{"implementation"},
	)
)

// ObserveStep records one step outcome.
func ObserveStep(implementation string, d time.Duration, err error) {
	if err != nil {
		StepErrorsTotal.WithLabelValues(implementation).Inc()
		return
	}
	StepsTotal.WithLabelValues(implementation).Inc()
	StepDuration.WithLabelValues(implementation).Observe(d.Seconds())
}
