// Package metric provides Prometheus metrics for SimuCore.
//
// MetricsRegistry wraps a private prometheus.Registry. It carries the
// platform-level Metrics (tick counters, fault counters, service status) and
// lets packages register their own collectors under a service name:
//
//	reg := metric.NewMetricsRegistry()
//	frames := prometheus.NewCounter(prometheus.CounterOpts{...})
//	if err := reg.RegisterCounter("websocket", "frames_in", frames); err != nil {
//		return err
//	}
//
// Registering the same service/metric pair twice returns an invalid-class
// error rather than panicking.
//
// Packages follow the "nil registry, nil metrics" convention: constructors
// accept a *MetricsRegistry that may be nil, in which case no collectors are
// created and recording methods are no-ops.
//
// Server exposes the registry on /metrics and, when configured, a health
// handler on /health.
package metric
