package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fermentd",
		Name:      "decisions_total",
		Help:      "Control decisions taken, by reason code.",
	}, []string{"reason"})

	LearnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fermentd",
		Name:      "learns_total",
		Help:      "Model fits attempted, by outcome.",
	}, []string{"outcome"})

	ModelCoefficient = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fermentd",
		Name:      "model_coefficient",
		Help:      "Learned thermal coefficients per batch.",
	}, []string{"batch", "coefficient"})

	PredictedTemp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fermentd",
		Name:      "predicted_temp_celsius",
		Help:      "End-of-horizon temperature forecast under the chosen action.",
	}, []string{"batch"})
)

// LearnOutcome maps a fit result to the label used on LearnsTotal.
func LearnOutcome(success bool) string {
	if success {
		return "success"
	}
	return "no_model"
}
