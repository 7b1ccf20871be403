package intake

import (
	"github.com/prometheus/client_golang/prometheus"
)

// intakeOutcomesTotal counts finished workflows by how they ended.
//
// Labels: outcome (success, fail, timeout, error, cancelled)
// Type: Counter
var intakeOutcomesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dispenser_intake_outcomes_total",
		Help: "Total number of intake workflows by outcome",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(intakeOutcomesTotal)
}

func outcomeLabel(p Phase) string {
	switch p {
	case PhaseSucceeded:
		return "success"
	case PhaseFailed:
		return "fail"
	case PhaseTimedOut:
		return "timeout"
	case PhaseErrored:
		return "error"
	default:
		return "cancelled"
	}
}

func recordOutcome(p Phase) {
	intakeOutcomesTotal.WithLabelValues(outcomeLabel(p)).Inc()
}
