// Package metrics exposes Prometheus instrumentation for the chat engine.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Turn outcome labels.
const (
	OutcomeAnswer         = "answer"
	OutcomeAnswerFailed   = "answer_failed"
	OutcomeBookingStarted = "booking_started"
	OutcomeBookingStep    = "booking_step"
	OutcomeBookingDone    = "booking_completed"
	OutcomeBookingRetry   = "booking_retry"
	OutcomeCancelled      = "booking_cancelled"
)

// ChatMetrics tracks turn outcomes, LLM latency, and created bookings.
type ChatMetrics struct {
	turnsTotal    *prometheus.CounterVec
	llmLatency    prometheus.Histogram
	bookingsTotal prometheus.Counter
}

func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	m := &ChatMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vetchat",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Total processed chat turns by outcome",
		}, []string{"outcome"}),
		llmLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vetchat",
			Subsystem: "chat",
			Name:      "llm_latency_seconds",
			Help:      "Latency of answer-generator completions",
			Buckets:   prometheus.DefBuckets,
		}),
		bookingsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vetchat",
			Subsystem: "chat",
			Name:      "bookings_created_total",
			Help:      "Total appointment bookings persisted",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.llmLatency, m.bookingsTotal)
	return m
}

func (m *ChatMetrics) ObserveTurn(outcome string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(outcome).Inc()
}

func (m *ChatMetrics) ObserveLLMLatency(seconds float64) {
	if m == nil {
		return
	}
	m.llmLatency.Observe(seconds)
}

func (m *ChatMetrics) ObserveBookingCreated() {
	if m == nil {
		return
	}
	m.bookingsTotal.Inc()
}
