package escalation

import (
	"time"

	"github.com/bissquit/oncall-garden/internal/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	escalationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "escalation",
			Name:      "escalations_total",
			Help:      "Escalation level advances by reason",
		},
		[]string{"reason"},
	)

	incidentsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "escalation",
			Name:      "incidents_processed_total",
			Help:      "Incidents evaluated by the worker by outcome",
		},
		[]string{"outcome"},
	)

	tickDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metrics.Namespace,
			Subsystem: "escalation",
			Name:      "tick_duration_seconds",
			Help:      "Duration of an escalation worker tick",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"status"},
	)

	workerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metrics.Namespace,
			Subsystem: "escalation",
			Name:      "worker_state",
			Help:      "Escalation worker state (0 idle, 1 scanning, 2 dispatching)",
		},
	)
)

func recordEscalation(reason string) {
	escalationsTotal.WithLabelValues(reason).Inc()
}

func recordProcessed(o outcome) {
	incidentsProcessed.WithLabelValues(string(o)).Inc()
}

func recordTick(d time.Duration, status string) {
	tickDuration.WithLabelValues(status).Observe(d.Seconds())
}
