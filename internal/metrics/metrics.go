package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/captvenkat/faujnet-backend/internal/core"
)

// Recorder owns a private registry with decision and delivery metrics
type Recorder struct {
	registry *prometheus.Registry

	decisions        *prometheus.CounterVec
	decisionDuration *prometheus.HistogramVec
	deliveries       *prometheus.CounterVec
	inboundRejected  *prometheus.CounterVec
}

// NewRecorder creates a recorder and registers its collectors
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()

	decisions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faujnet",
			Name:      "decisions_total",
			Help:      "Terminal decisions by inbox, action and reason.",
		},
		[]string{"kind", "action", "reason"},
	)
	decisionDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "faujnet",
			Name:      "decision_duration_seconds",
			Help:      "Time taken to resolve one inbound message.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"kind"},
	)
	deliveries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faujnet",
			Name:      "delivery_total",
			Help:      "Outbound reply deliveries by mailer mode and status.",
		},
		[]string{"mode", "status"},
	)
	inboundRejected := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faujnet",
			Name:      "inbound_rejected_total",
			Help:      "Inbound messages refused before reaching the pipeline.",
		},
		[]string{"reason"},
	)

	registry.MustRegister(decisions, decisionDuration, deliveries, inboundRejected)

	return &Recorder{
		registry:         registry,
		decisions:        decisions,
		decisionDuration: decisionDuration,
		deliveries:       deliveries,
		inboundRejected:  inboundRejected,
	}
}

// ObserveDecision implements core.DecisionObserver
func (r *Recorder) ObserveDecision(kind core.EventKind, d *core.Decision, elapsed time.Duration) {
	r.decisions.WithLabelValues(string(kind), string(d.Action), string(d.Reason)).Inc()
	r.decisionDuration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

// ObserveDelivery counts one delivery attempt
func (r *Recorder) ObserveDelivery(mode, status string) {
	r.deliveries.WithLabelValues(mode, status).Inc()
}

// ObserveInboundRejected counts a message refused by the transport
func (r *Recorder) ObserveInboundRejected(reason string) {
	r.inboundRejected.WithLabelValues(reason).Inc()
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
