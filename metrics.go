package httplite

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the server counters.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	connsAccepted prometheus.Counter
	connsRejected prometheus.Counter
	connsActive   prometheus.Gauge
	requests      *prometheus.CounterVec
	parseErrors   prometheus.Counter
}

// NewMetrics creates the server metrics and registers them with reg.
//
// prometheus.DefaultRegisterer is used if reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		connsAccepted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "httplite",
			Subsystem: "server",
			Name:      "connections_accepted_total",
			Help:      "Total number of accepted connections",
		}),
		connsRejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: "httplite",
			Subsystem: "server",
			Name:      "connections_rejected_total",
			Help:      "Total number of connections closed because the concurrency limit was reached",
		}),
		connsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "httplite",
			Subsystem: "server",
			Name:      "connections_active",
			Help:      "Number of connections being served",
		}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "httplite",
			Subsystem: "server",
			Name:      "requests_total",
			Help:      "Total number of answered requests",
		}, []string{"code"}),
		parseErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: "httplite",
			Subsystem: "server",
			Name:      "parse_errors_total",
			Help:      "Total number of requests failing to parse",
		}),
	}
}

func (m *Metrics) connAccepted() {
	if m != nil {
		m.connsAccepted.Inc()
	}
}

func (m *Metrics) connRejected() {
	if m != nil {
		m.connsRejected.Inc()
	}
}

func (m *Metrics) connOpened() {
	if m != nil {
		m.connsActive.Inc()
	}
}

func (m *Metrics) connClosed() {
	if m != nil {
		m.connsActive.Dec()
	}
}

func (m *Metrics) requestServed(statusCode int) {
	if m != nil {
		m.requests.WithLabelValues(strconv.Itoa(statusCode)).Inc()
	}
}

func (m *Metrics) parseFailed() {
	if m != nil {
		m.parseErrors.Inc()
	}
}
