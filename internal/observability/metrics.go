package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects dispatch and attempt metrics.
type Metrics struct {
	AttemptsTotal   *prometheus.CounterVec
	AttemptDuration *prometheus.HistogramVec
	DispatchesTotal *prometheus.CounterVec
}

// NewMetrics creates and registers the relay metrics on the given registerer.
// A nil registerer gets a private registry, which keeps tests isolated.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		AttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatrelay_attempts_total",
				Help: "Total number of upstream model attempts",
			},
			[]string{"model", "outcome"},
		),
		AttemptDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chatrelay_attempt_duration_seconds",
				Help:    "Upstream attempt duration in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
			},
			[]string{"model"},
		),
		DispatchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatrelay_dispatches_total",
				Help: "Total number of completed dispatches",
			},
			[]string{"outcome", "used"},
		),
	}
}

// RecordAttempt records one upstream attempt outcome.
func (m *Metrics) RecordAttempt(model, outcome string, elapsed time.Duration) {
	m.AttemptsTotal.WithLabelValues(model, outcome).Inc()
	m.AttemptDuration.WithLabelValues(model).Observe(elapsed.Seconds())
}

// RecordDispatch records one completed dispatch. used is empty on exhaustion.
func (m *Metrics) RecordDispatch(outcome, used string) {
	m.DispatchesTotal.WithLabelValues(outcome, used).Inc()
}
