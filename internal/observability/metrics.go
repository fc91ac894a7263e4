package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveSessions   prometheus.Gauge
	SessionEvents    *prometheus.CounterVec
	WSMessages       *prometheus.CounterVec
	WSWriteErrors    *prometheus.CounterVec
	OutboundMessages *prometheus.CounterVec
	ProviderErrors   *prometheus.CounterVec
	DroppedInputs    *prometheus.CounterVec
	ProtocolMisuse   *prometheus.CounterVec
	TurnTransitions  *prometheus.CounterVec
	ModelLatency     prometheus.Histogram

	gatherer prometheus.Gatherer
	window   *interviewWindow
}

// NewMetrics registers on the default Prometheus registry.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(namespace, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewMetricsWith registers on reg; tests pass a fresh prometheus.NewRegistry().
func NewMetricsWith(namespace string, reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of active interview sessions.",
		}),
		SessionEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session events by type.",
		}, []string{"event"}),
		WSMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		WSWriteErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_write_errors_total",
			Help:      "WebSocket write failures by stage.",
		}, []string{"stage"}),
		OutboundMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_messages_total",
			Help:      "Outbound queue outcomes by message type.",
		}, []string{"type", "outcome"}),
		ProviderErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Provider errors by provider and code.",
		}, []string{"provider", "code"}),
		DroppedInputs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_inputs_total",
			Help:      "User input dropped before reaching the model, by reason.",
		}, []string{"reason"}),
		ProtocolMisuse: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_misuse_total",
			Help:      "Client events ignored because the session could not accept them.",
		}, []string{"type"}),
		TurnTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turn_transitions_total",
			Help:      "Turn state transitions by target state.",
		}, []string{"to"}),
		ModelLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_latency_ms",
			Help:      "Chat completion latency in milliseconds.",
			Buckets:   []float64{250, 500, 1000, 1500, 2500, 4000, 8000, 15000},
		}),
		gatherer: gatherer,
		window:   newInterviewWindow(256),
	}
}

func (m *Metrics) ObserveModelLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.ModelLatency.Observe(float64(d.Milliseconds()))
}

func (m *Metrics) ObserveOutboundMessage(msgType, outcome string) {
	if m == nil {
		return
	}
	m.OutboundMessages.WithLabelValues(msgType, outcome).Inc()
}

// ObserveStage records how long an interview stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.window.stage(stage, d)
}

// ObserveInput records what happened to a piece of candidate input: accepted
// as a turn or dropped for the given reason.
func (m *Metrics) ObserveInput(outcome string) {
	if m == nil {
		return
	}
	if outcome != InputAccepted {
		m.DroppedInputs.WithLabelValues(outcome).Inc()
	}
	m.window.input(outcome)
}

// ObserveQueueDepth records pending work for a session after an enqueue.
func (m *Metrics) ObserveQueueDepth(n int) {
	if m == nil {
		return
	}
	m.window.queueDepth(n)
}

func (m *Metrics) ObserveIndicator(name string) {
	if m == nil {
		return
	}
	m.window.indicator(name)
}

func (m *Metrics) SnapshotLatency() LatencySnapshot {
	return m.window.snapshot()
}

func (m *Metrics) ResetLatency() {
	m.window.reset()
}

// Handler serves the registry these metrics were registered on.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
