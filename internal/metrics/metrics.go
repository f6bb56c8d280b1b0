// Package metrics holds the Prometheus collectors for the ingest
// pipeline on a private registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sentence outcome label values.
const (
	ResultDecoded      = "decoded"
	ResultRegistration = "registration"
	ResultUnbound      = "unbound"
	ResultInvalid      = "invalid"
	ResultUnsupported  = "unsupported"
	ResultUnknown      = "unknown"
)

type Metrics struct {
	registry *prometheus.Registry

	Sentences   *prometheus.CounterVec
	Positions   prometheus.Counter
	SinkErrors  *prometheus.CounterVec
	Connections prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Sentences: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trackserv",
			Name:      "sentences_total",
			Help:      "Inbound sentences by protocol and decode outcome.",
		}, []string{"protocol", "result"}),
		Positions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trackserv",
			Name:      "positions_total",
			Help:      "Telemetry records produced by decoders.",
		}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trackserv",
			Name:      "sink_errors_total",
			Help:      "Failures delivering records to a sink.",
		}, []string{"sink"}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "trackserv",
			Name:      "connections",
			Help:      "Currently open device connections.",
		}),
	}

	m.registry.MustRegister(
		m.Sentences,
		m.Positions,
		m.SinkErrors,
		m.Connections,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
