package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the platform-level metrics shared by every SimuCore service
type Metrics struct {
	ServiceStatus  *prometheus.GaugeVec
	TicksTotal     prometheus.Counter
	TickDuration   prometheus.Histogram
	BehaviorFaults *prometheus.CounterVec
	SignalsTotal   prometheus.Gauge
	MutationsTotal *prometheus.CounterVec
	SnapshotBytes  prometheus.Histogram
	ErrorsTotal    *prometheus.CounterVec
}

// NewMetrics creates the core metrics. They are not registered until handed
// to a MetricsRegistry.
func NewMetrics() *Metrics {
	return &Metrics{
		ServiceStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "simucore",
			Name:      "service_status",
			Help:      "Service status (0=stopped, 1=starting, 2=running, 3=stopping, 4=failed)",
		}, []string{"service"}),
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "simucore",
			Subsystem: "engine",
			Name:      "ticks_total",
			Help:      "Completed application ticks",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "simucore",
			Subsystem: "engine",
			Name:      "tick_duration_seconds",
			Help:      "Wall time spent inside a tick excluding the ticker wait",
			Buckets:   []float64{.0001, .0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}),
		BehaviorFaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "simucore",
			Subsystem: "component",
			Name:      "behavior_faults_total",
			Help:      "Errors and panics absorbed from component behaviors",
		}, []string{"phase"}),
		SignalsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "simucore",
			Subsystem: "registry",
			Name:      "signals",
			Help:      "Signals currently registered",
		}),
		MutationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "simucore",
			Subsystem: "engine",
			Name:      "mutations_total",
			Help:      "Inbound signal mutations by outcome",
		}, []string{"outcome"}),
		SnapshotBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "simucore",
			Subsystem: "snapshot",
			Name:      "bytes",
			Help:      "Size of serialized tree snapshots",
			Buckets:   prometheus.ExponentialBuckets(256, 2, 10),
		}),
		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "simucore",
			Name:      "errors_total",
			Help:      "Errors by service and class",
		}, []string{"service", "class"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ServiceStatus,
		m.TicksTotal,
		m.TickDuration,
		m.BehaviorFaults,
		m.SignalsTotal,
		m.MutationsTotal,
		m.SnapshotBytes,
		m.ErrorsTotal,
	}
}

// RecordServiceStatus sets the status gauge for a service
func (m *Metrics) RecordServiceStatus(service string, status int) {
	m.ServiceStatus.WithLabelValues(service).Set(float64(status))
}

// RecordError counts an error for a service under its class label
func (m *Metrics) RecordError(service, class string) {
	m.ErrorsTotal.WithLabelValues(service, class).Inc()
}
