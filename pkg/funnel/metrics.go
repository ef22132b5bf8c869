package funnel

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	evaluationsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mixbaba_evaluations_total",
		Help: "Number of funnel slices evaluated, by final status.",
	}, []string{"funnel", "status"})
	armProbabilityMetric = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mixbaba_arm_probability",
		Help: "Probability that a test arm converts better than the control.",
	}, []string{"funnel", "discriminant", "cohort", "arm"})
	armUpliftMetric = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mixbaba_arm_uplift",
		Help: "Relative uplift of a test arm over the control.",
	}, []string{"funnel", "discriminant", "cohort", "arm"})
	diagnosticsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mixbaba_group_diagnostics_total",
		Help: "Number of group identifiers that could not be mapped to a role.",
	}, []string{"funnel"})
	fetchDurationMetric = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mixbaba_fetch_duration_seconds",
		Help:    "Time spent fetching funnel data for one slice.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"funnel"})
)
