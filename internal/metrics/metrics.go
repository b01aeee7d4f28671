// Package metrics exposes Prometheus collectors for the chat hub and the
// account service.
//
// Collectors are registered on a private registry owned by Metrics, never on
// the global default, so tests can build as many instances as they like.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "courier"

// Metrics implements chat.Observer and service.EventRecorder.
type Metrics struct {
	registry *prometheus.Registry

	connections    prometheus.Gauge
	connectionsAll prometheus.Counter
	broadcasts     prometheus.Counter
	deliveries     prometheus.Counter
	dropped        *prometheus.CounterVec
	accountEvents  *prometheus.CounterVec
}

// New builds the collectors. Go runtime and process collectors are included.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "connections",
			Help:      "Number of open WebSocket connections.",
		}),
		connectionsAll: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "connections_total",
			Help:      "WebSocket connections accepted since start.",
		}),
		broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "broadcasts_total",
			Help:      "Messages broadcast to the hub.",
		}),
		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "deliveries_total",
			Help:      "Messages queued to individual clients.",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "dropped_messages_total",
			Help:      "Messages discarded, by reason.",
		}, []string{"reason"}),
		accountEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "accounts",
			Name:      "events_total",
			Help:      "Account lifecycle events, by kind.",
		}, []string{"event"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.connections,
		m.connectionsAll,
		m.broadcasts,
		m.deliveries,
		m.dropped,
		m.accountEvents,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ConnectionOpened() {
	m.connections.Inc()
	m.connectionsAll.Inc()
}

func (m *Metrics) ConnectionClosed() { m.connections.Dec() }

func (m *Metrics) MessageBroadcast(recipients int) {
	m.broadcasts.Inc()
	m.deliveries.Add(float64(recipients))
}

func (m *Metrics) MessageDropped(reason string) {
	m.dropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordAccountEvent(event string) {
	m.accountEvents.WithLabelValues(event).Inc()
}
