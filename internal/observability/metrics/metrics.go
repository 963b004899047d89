package metrics

import "github.com/prometheus/client_golang/prometheus"

// ConversationMetrics exposes counters/histograms for the turn pipeline.
type ConversationMetrics struct {
	turnsTotal    *prometheus.CounterVec
	turnLatency   prometheus.Histogram
	sanitizerHits *prometheus.CounterVec
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assistant",
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Total processed turns by outcome",
		}, []string{"outcome"}),
		turnLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "assistant",
			Subsystem: "conversation",
			Name:      "completion_latency_seconds",
			Help:      "Latency of generative backend completions",
			Buckets:   prometheus.DefBuckets,
		}),
		sanitizerHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assistant",
			Subsystem: "conversation",
			Name:      "sanitizer_hits_total",
			Help:      "Sanitizer rule applications on generated replies",
		}, []string{"rule"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.turnLatency, m.sanitizerHits)
	return m
}

func (m *ConversationMetrics) ObserveTurn(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(outcome).Inc()
	m.turnLatency.Observe(seconds)
}

func (m *ConversationMetrics) ObserveSanitizerHit(rule string) {
	if m == nil {
		return
	}
	m.sanitizerHits.WithLabelValues(rule).Inc()
}

// WebhookMetrics exposes counters for the Telegram transport.
type WebhookMetrics struct {
	inboundTotal  *prometheus.CounterVec
	outboundTotal *prometheus.CounterVec
}

func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	m := &WebhookMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assistant",
			Subsystem: "telegram",
			Name:      "inbound_webhook_total",
			Help:      "Total inbound Telegram webhook updates",
		}, []string{"status"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assistant",
			Subsystem: "telegram",
			Name:      "outbound_total",
			Help:      "Total outbound Telegram sends",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.outboundTotal)
	return m
}

func (m *WebhookMetrics) ObserveInbound(status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(status).Inc()
}

func (m *WebhookMetrics) ObserveOutbound(status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(status).Inc()
}
