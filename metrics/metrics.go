// Package metrics exposes Prometheus collectors for written envelopes.
//
//	reg := prometheus.NewRegistry()
//	m := metrics.New()
//	reg.MustRegister(m)
//	rsp := responder.NewResponder(responder.WithMetrics(m))
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels.
const (
	OutcomeSuccess     = "success"
	OutcomeFailure     = "failure"
	OutcomePassthrough = "passthrough"
)

// Metrics implements prometheus.Collector.
type Metrics struct {
	Responses     *prometheus.CounterVec
	BuildDuration *prometheus.HistogramVec
}

var _ prometheus.Collector = (*Metrics)(nil)

// New creates unregistered collectors.
func New() *Metrics {
	return &Metrics{
		Responses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "apienvelope",
				Name:      "responses_total",
				Help:      "Responses written, by outcome, error code and HTTP status",
			},
			[]string{"outcome", "code", "status"},
		),
		BuildDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "apienvelope",
				Name:      "build_duration_seconds",
				Help:      "Time spent building and writing a response",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
			},
			[]string{"outcome"},
		),
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.Responses.Describe(ch)
	m.BuildDuration.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.Responses.Collect(ch)
	m.BuildDuration.Collect(ch)
}

// Observe records one written response. Nil receivers are ignored.
func (m *Metrics) Observe(outcome, code string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Responses.WithLabelValues(outcome, code, strconv.Itoa(status)).Inc()
	m.BuildDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}
