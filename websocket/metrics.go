package websocket

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/simucore/metric"
)

const metricsService = "websocket"

// serverMetrics is nil when no registry was supplied; every method is then a
// no-op.
type serverMetrics struct {
	clientsConnected   prometheus.Gauge
	connectionTotal    prometheus.Counter
	disconnectionTotal *prometheus.CounterVec
	handshakeFailures  prometheus.Counter
	framesReceived     *prometheus.CounterVec
	framesSent         prometheus.Counter
	bytesSent          prometheus.Counter
	errorsTotal        *prometheus.CounterVec
}

func newMetrics(registry *metric.MetricsRegistry) (*serverMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &serverMetrics{
		clientsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "simucore",
			Subsystem: "websocket",
			Name:      "clients_connected",
			Help:      "Number of currently connected clients",
		}),
		connectionTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "simucore",
			Subsystem: "websocket",
			Name:      "client_connections_total",
			Help:      "Clients that completed the handshake",
		}),
		disconnectionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "simucore",
			Subsystem: "websocket",
			Name:      "client_disconnections_total",
			Help:      "Client disconnections by reason",
		}, []string{"disconnect_reason"}),
		handshakeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "simucore",
			Subsystem: "websocket",
			Name:      "handshake_failures_total",
			Help:      "Connections closed before the handshake completed",
		}),
		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "simucore",
			Subsystem: "websocket",
			Name:      "frames_received_total",
			Help:      "Inbound frames by opcode",
		}, []string{"opcode"}),
		framesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "simucore",
			Subsystem: "websocket",
			Name:      "frames_sent_total",
			Help:      "Outbound data frames written to clients",
		}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "simucore",
			Subsystem: "websocket",
			Name:      "bytes_sent_total",
			Help:      "Payload bytes written to clients",
		}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "simucore",
			Subsystem: "websocket",
			Name:      "errors_total",
			Help:      "WebSocket server errors",
		}, []string{"error_type"}),
	}

	for _, reg := range []func() error{
		func() error { return registry.RegisterGauge(metricsService, "clients_connected", m.clientsConnected) },
		func() error { return registry.RegisterCounter(metricsService, "client_connections", m.connectionTotal) },
		func() error {
			return registry.RegisterCounterVec(metricsService, "client_disconnections", m.disconnectionTotal)
		},
		func() error { return registry.RegisterCounter(metricsService, "handshake_failures", m.handshakeFailures) },
		func() error { return registry.RegisterCounterVec(metricsService, "frames_received", m.framesReceived) },
		func() error { return registry.RegisterCounter(metricsService, "frames_sent", m.framesSent) },
		func() error { return registry.RegisterCounter(metricsService, "bytes_sent", m.bytesSent) },
		func() error { return registry.RegisterCounterVec(metricsService, "errors", m.errorsTotal) },
	} {
		if err := reg(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *serverMetrics) connected() {
	if m == nil {
		return
	}
	m.clientsConnected.Inc()
	m.connectionTotal.Inc()
}

func (m *serverMetrics) disconnected(reason string) {
	if m == nil {
		return
	}
	m.clientsConnected.Dec()
	m.disconnectionTotal.WithLabelValues(reason).Inc()
}

func (m *serverMetrics) handshakeFailed() {
	if m == nil {
		return
	}
	m.handshakeFailures.Inc()
}

func (m *serverMetrics) frameReceived(op Opcode) {
	if m == nil {
		return
	}
	m.framesReceived.WithLabelValues(op.String()).Inc()
}

func (m *serverMetrics) sent(payloadBytes int) {
	if m == nil {
		return
	}
	m.framesSent.Inc()
	m.bytesSent.Add(float64(payloadBytes))
}

func (m *serverMetrics) failed(kind string) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(kind).Inc()
}
