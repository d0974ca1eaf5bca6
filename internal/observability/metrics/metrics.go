package metrics

import "github.com/prometheus/client_golang/prometheus"

// ChatMetrics exposes counters/histograms for the chat assistant flows.
type ChatMetrics struct {
	completionTotal   *prometheus.CounterVec
	completionLatency *prometheus.HistogramVec
	turnsTotal        *prometheus.CounterVec
	bookingsTotal     *prometheus.CounterVec
	swallowedTotal    *prometheus.CounterVec
	rateLimitedTotal  prometheus.Counter
}

func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	m := &ChatMetrics{
		completionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storage",
			Subsystem: "chat",
			Name:      "completion_total",
			Help:      "Completion engine calls by operation and outcome",
		}, []string{"operation", "outcome"}),
		completionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "storage",
			Subsystem: "chat",
			Name:      "completion_latency_seconds",
			Help:      "Latency of completion engine calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storage",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Completed user turns by the kind of assistant message appended",
		}, []string{"result"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storage",
			Subsystem: "chat",
			Name:      "bookings_total",
			Help:      "Booking submissions by outcome",
		}, []string{"outcome"}),
		swallowedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storage",
			Subsystem: "chat",
			Name:      "swallowed_failures_total",
			Help:      "Best-effort backend failures absorbed without reaching the user",
		}, []string{"backend", "operation"}),
		rateLimitedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storage",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Chat requests rejected by the per-client rate limit",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.completionTotal, m.completionLatency, m.turnsTotal, m.bookingsTotal, m.swallowedTotal, m.rateLimitedTotal)
	return m
}

func (m *ChatMetrics) ObserveCompletion(operation, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.completionTotal.WithLabelValues(operation, outcome).Inc()
	m.completionLatency.WithLabelValues(operation).Observe(seconds)
}

func (m *ChatMetrics) ObserveTurn(result string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(result).Inc()
}

func (m *ChatMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

// ObserveSwallowed counts a failure that was logged and absorbed.
func (m *ChatMetrics) ObserveSwallowed(backend, operation string) {
	if m == nil {
		return
	}
	m.swallowedTotal.WithLabelValues(backend, operation).Inc()
}

func (m *ChatMetrics) ObserveRateLimited() {
	if m == nil {
		return
	}
	m.rateLimitedTotal.Inc()
}
