package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/espacoamar/amanda-backend/internal/engine"
)

// EngineMetrics exposes counters for conversation engine events. It
// implements engine.Sink so the conversation service and ghost worker can
// record without importing prometheus.
type EngineMetrics struct {
	decisionTotal *prometheus.CounterVec
	modeChanges   *prometheus.CounterVec
	ghostNudges   *prometheus.CounterVec
	eventsTotal   *prometheus.CounterVec
}

func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		decisionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "amanda",
			Subsystem: "engine",
			Name:      "decision_total",
			Help:      "Total routed conversation turns by action and handler",
		}, []string{"action", "handler"}),
		modeChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "amanda",
			Subsystem: "engine",
			Name:      "mode_change_total",
			Help:      "Total conversation mode transitions",
		}, []string{"from", "to"}),
		ghostNudges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "amanda",
			Subsystem: "engine",
			Name:      "ghost_nudge_total",
			Help:      "Total ghost recovery nudges sent",
		}, []string{"attempt", "hot"}),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "amanda",
			Subsystem: "engine",
			Name:      "event_total",
			Help:      "Engine events without a dedicated counter",
		}, []string{"name"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.decisionTotal, m.modeChanges, m.ghostNudges, m.eventsTotal)
	return m
}

// Record routes an engine event to its counter.
func (m *EngineMetrics) Record(ev engine.Event) {
	if m == nil {
		return
	}
	switch ev.Name {
	case "engine_decision":
		m.decisionTotal.WithLabelValues(ev.Labels["action"], ev.Labels["handler"]).Inc()
	case "engine_mode_change":
		m.modeChanges.WithLabelValues(ev.Labels["from"], ev.Labels["to"]).Inc()
	case "ghost_nudge_sent":
		m.ghostNudges.WithLabelValues(ev.Labels["attempt"], ev.Labels["hot"]).Inc()
	default:
		m.eventsTotal.WithLabelValues(ev.Name).Inc()
	}
}

var _ engine.Sink = (*EngineMetrics)(nil)

// MessagingMetrics exposes counters and latency for WhatsApp webhook flows.
type MessagingMetrics struct {
	inboundTotal   *prometheus.CounterVec
	outboundTotal  *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
}

func NewMessagingMetrics(reg prometheus.Registerer) *MessagingMetrics {
	m := &MessagingMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "amanda",
			Subsystem: "messaging",
			Name:      "inbound_webhook_total",
			Help:      "Total inbound Twilio webhooks",
		}, []string{"status"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "amanda",
			Subsystem: "messaging",
			Name:      "outbound_total",
			Help:      "Total outbound WhatsApp sends",
		}, []string{"status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "amanda",
			Subsystem: "messaging",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of inbound webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.outboundTotal, m.webhookLatency)
	return m
}

func (m *MessagingMetrics) ObserveInbound(status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(status).Inc()
}

func (m *MessagingMetrics) ObserveOutbound(status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(status).Inc()
}

func (m *MessagingMetrics) ObserveWebhookLatency(status string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(status).Observe(seconds)
}
