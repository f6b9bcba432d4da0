package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks Control lifecycle and peer dispatch.
type Metrics struct {
	ControlsCreated    *prometheus.CounterVec
	ControlsCompleted  *prometheus.CounterVec
	RequestsDispatched *prometheus.CounterVec
	DispatchDuration   prometheus.Histogram
	Acks               *prometheus.CounterVec
	SweepTimeouts      *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		ControlsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "efti_gate_controls_created_total",
			Help: "Controls created by request type",
		}, []string{"type"}),

		ControlsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "efti_gate_controls_completed_total",
			Help: "Controls that reached a terminal status",
		}, []string{"status"}),

		RequestsDispatched: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "efti_gate_requests_dispatched_total",
			Help: "Requests handed to the access point",
		}, []string{"outcome"}), // outcome: "sent", "failed"

		DispatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "efti_gate_dispatch_duration_seconds",
			Help:    "Time spent submitting one message to the access point",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),

		Acks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "efti_gate_acks_total",
			Help: "Peer acknowledgements by result",
		}, []string{"result"}), // result: "applied", "discarded"

		SweepTimeouts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "efti_gate_sweep_timeouts_total",
			Help: "Rows moved to TIMEOUT by the sweeper",
		}, []string{"row"}), // row: "request" counts owning controls, "control"
	}
}

func (m *Metrics) IncrementControlsCreated(requestType string) {
	if m != nil {
		m.ControlsCreated.WithLabelValues(requestType).Inc()
	}
}

func (m *Metrics) IncrementControlsCompleted(status string) {
	if m != nil {
		m.ControlsCompleted.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) AddControlsCompleted(status string, n int) {
	if m != nil && n > 0 {
		m.ControlsCompleted.WithLabelValues(status).Add(float64(n))
	}
}

// ObserveDispatch records one submission attempt and its latency.
func (m *Metrics) ObserveDispatch(outcome string, d time.Duration) {
	if m != nil {
		m.RequestsDispatched.WithLabelValues(outcome).Inc()
		m.DispatchDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementAcks(result string) {
	if m != nil {
		m.Acks.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) AddSweepTimeouts(row string, n int) {
	if m != nil && n > 0 {
		m.SweepTimeouts.WithLabelValues(row).Add(float64(n))
	}
}
