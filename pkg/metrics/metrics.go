package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

func NewServerMetrics(reg prometheus.Registerer, service string) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orderly",
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "orderly",
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})

	reg.MustRegister(requests, latency)
	return &ServerMetrics{Requests: requests, LatencyMS: latency}
}

// ConsumerMetrics counts consumed broker messages by event name and outcome
// (applied, dropped, duplicate, failed).
type ConsumerMetrics struct {
	Messages *prometheus.CounterVec
}

func NewConsumerMetrics(reg prometheus.Registerer, service string) *ConsumerMetrics {
	messages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orderly",
		Subsystem: service,
		Name:      "consumed_messages_total",
		Help:      "Broker messages consumed, by event and outcome.",
	}, []string{"event", "outcome"})

	reg.MustRegister(messages)
	return &ConsumerMetrics{Messages: messages}
}

func (m *ConsumerMetrics) Observe(event, outcome string) {
	if m == nil {
		return
	}
	m.Messages.WithLabelValues(event, outcome).Inc()
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
