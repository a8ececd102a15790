// Package metrics declares the observability surface the bridge's
// subsystems instrument against: one interface per subsystem
// (WorkerPoolMetrics, LockMetrics, DispatchMetrics, HandleMetrics), each
// satisfied by a nil-safe no-op (pass nil, pay nothing) and by a
// Prometheus-backed implementation in internal/metrics/prometheus.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	enabled  bool
	registry *prometheus.Registry
)

// Init activates metrics collection against a fresh Prometheus registry.
// Call once at startup when internal/config.MetricsConfig.Enabled is
// true; internal/metrics/prometheus constructors return nil
// implementations until this has run: zero overhead when disabled.
func Init() *prometheus.Registry {
	registry = prometheus.NewRegistry()
	enabled = true
	return registry
}

// IsEnabled reports whether Init has been called.
func IsEnabled() bool { return enabled }

// Registry returns the active registry, or nil if metrics are disabled.
func Registry() *prometheus.Registry { return registry }
