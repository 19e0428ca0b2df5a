package metrics

import "github.com/prometheus/client_golang/prometheus"

// CircuitMetrics tracks circuit-breaker state per guarded component.
type CircuitMetrics struct {
	State        *prometheus.GaugeVec
	StateChanges *prometheus.CounterVec
}

func NewCircuitMetrics(reg prometheus.Registerer) *CircuitMetrics {
	m := &CircuitMetrics{
		State: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "circuit_breaker",
			Name:      "state",
			Help:      "Current circuit breaker state (0=closed, 1=half-open, 2=open).",
		}, []string{"component"}),
		StateChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "circuit_breaker",
			Name:      "state_changes_total",
			Help:      "Total number of circuit breaker state transitions, by target state.",
		}, []string{"component", "state"}),
	}

	reg.MustRegister(m.State, m.StateChanges)
	return m
}

// Transition records a move to state. value follows the State gauge encoding.
func (m *CircuitMetrics) Transition(component, state string, value float64) {
	if m == nil {
		return
	}
	m.StateChanges.WithLabelValues(component, state).Inc()
	m.State.WithLabelValues(component).Set(value)
}
