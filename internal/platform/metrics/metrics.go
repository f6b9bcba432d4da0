package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds process-wide Prometheus metrics for the transport edge.
type Metrics struct {
	NotificationsConsumed *prometheus.CounterVec
	NotificationsSkipped  *prometheus.CounterVec
}

// New creates and registers the transport edge metrics.
func New() *Metrics {
	return &Metrics{
		NotificationsConsumed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "efti_gate_notifications_consumed_total",
			Help: "Access point notifications consumed by type and outcome",
		}, []string{"type", "outcome"}), // outcome: "handled", "failed"

		NotificationsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "efti_gate_notifications_skipped_total",
			Help: "Access point notifications skipped before handling",
		}, []string{"reason"}), // reason: "duplicate", "malformed", "unroutable"
	}
}

// IncrementConsumed records a notification that reached a handler.
func (m *Metrics) IncrementConsumed(notificationType, outcome string) {
	if m != nil {
		m.NotificationsConsumed.WithLabelValues(notificationType, outcome).Inc()
	}
}

// IncrementSkipped records a notification dropped before routing.
func (m *Metrics) IncrementSkipped(reason string) {
	if m != nil {
		m.NotificationsSkipped.WithLabelValues(reason).Inc()
	}
}

// Handler exposes the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
