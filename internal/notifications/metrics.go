package notifications

import (
	"time"

	"github.com/bissquit/oncall-garden/internal/domain"
	"github.com/bissquit/oncall-garden/internal/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	deliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "notifications",
			Name:      "deliveries_total",
			Help:      "Notification deliveries by channel and outcome",
		},
		[]string{"channel_type", "outcome"},
	)

	deliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metrics.Namespace,
			Subsystem: "notifications",
			Name:      "send_duration_seconds",
			Help:      "Time to send notification",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"channel_type"},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: metrics.Namespace,
			Subsystem: "notifications",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per channel (0 closed, 1 half-open, 2 open)",
		},
		[]string{"channel_type"},
	)
)

func recordDelivery(channel domain.ChannelType, outcome Outcome) {
	deliveriesTotal.WithLabelValues(string(channel), string(outcome)).Inc()
}

func recordDeliveryDuration(channel domain.ChannelType, d time.Duration) {
	deliveryDuration.WithLabelValues(string(channel)).Observe(d.Seconds())
}
