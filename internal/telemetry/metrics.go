package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Labels stay low-cardinality: no reader, intent or request ids.
var (
	CollaboratorCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "terminal_demo_collaborator_calls_total",
		Help: "Calls to the backend and the reader SDK, by collaborator, method and outcome.",
	}, []string{"collaborator", "method", "outcome"})

	CollaboratorCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "terminal_demo_collaborator_call_duration_seconds",
		Help:    "Latency of backend and reader SDK calls.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
	}, []string{"collaborator", "method"})

	Payments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "terminal_demo_payments_total",
		Help: "Card payment workflow results: captured, declined, collect_failed, capture_failed, canceled.",
	}, []string{"outcome"})

	ConnectionStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "terminal_demo_connection_status",
		Help: "1 for the reader link state last reported by the SDK, 0 otherwise.",
	}, []string{"status"})

	Alerts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "terminal_demo_alerts_total",
		Help: "User-visible alerts raised by the session controller.",
	})
)

var connectionStatuses = []string{"not_connected", "connecting", "connected"}

// RecordCall counts one collaborator call and observes its latency.
func RecordCall(collaborator, method string, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	CollaboratorCalls.WithLabelValues(collaborator, method, outcome).Inc()
	CollaboratorCallDuration.WithLabelValues(collaborator, method).Observe(elapsed.Seconds())
}

func RecordPayment(outcome string) {
	Payments.WithLabelValues(outcome).Inc()
}

// SetConnectionStatus marks status as the current link state.
func SetConnectionStatus(status string) {
	for _, s := range connectionStatuses {
		v := 0.0
		if s == status {
			v = 1
		}
		ConnectionStatus.WithLabelValues(s).Set(v)
	}
}

func RecordAlert() {
	Alerts.Inc()
}
