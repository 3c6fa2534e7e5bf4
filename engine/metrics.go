package engine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/simucore/metric"
)

// engineMetrics holds the metrics specific to the application runtime. The
// shared tick and mutation metrics live in metric.Metrics.
type engineMetrics struct {
	core *metric.Metrics

	rejected   *prometheus.CounterVec // inbound documents dropped, by reason
	broadcasts *prometheus.CounterVec // tick snapshots, by outcome
}

// newEngineMetrics registers the runtime metrics. A nil registry disables
// them.
func newEngineMetrics(registry *metric.MetricsRegistry) (*engineMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &engineMetrics{
		core: registry.CoreMetrics(),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "simucore",
			Subsystem: "engine",
			Name:      "messages_rejected_total",
			Help:      "Inbound messages dropped before routing",
		}, []string{"reason"}),
		broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "simucore",
			Subsystem: "engine",
			Name:      "broadcasts_total",
			Help:      "Tick snapshots handed to the transport",
		}, []string{"outcome"}), // sent, no_clients, failed
	}

	if err := registry.RegisterCounterVec("engine", "messages_rejected", m.rejected); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("engine", "broadcasts", m.broadcasts); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *engineMetrics) recordTick(seconds float64) {
	if m == nil {
		return
	}
	m.core.TicksTotal.Inc()
	m.core.TickDuration.Observe(seconds)
}

func (m *engineMetrics) recordSnapshot(size int) {
	if m == nil {
		return
	}
	m.core.SnapshotBytes.Observe(float64(size))
}

func (m *engineMetrics) recordRejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}

func (m *engineMetrics) recordMutation(outcome string) {
	if m == nil {
		return
	}
	m.core.MutationsTotal.WithLabelValues(outcome).Inc()
}

func (m *engineMetrics) recordBroadcast(outcome string) {
	if m == nil {
		return
	}
	m.broadcasts.WithLabelValues(outcome).Inc()
}

func (m *engineMetrics) recordStatus(status int) {
	if m == nil {
		return
	}
	m.core.RecordServiceStatus("engine", status)
}

func (m *engineMetrics) recordError(class string) {
	if m == nil {
		return
	}
	m.core.RecordError("engine", class)
}
