package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/deshaw/pjrmi-go/internal/metrics"
)

type lockMetrics struct {
	acquires   *prometheus.CounterVec
	waitTime   *prometheus.HistogramVec
	contention *prometheus.CounterVec
	deadlocks  prometheus.Counter
	timeouts   *prometheus.CounterVec
	locksHeld  prometheus.Gauge
}

// NewLockMetrics returns a Prometheus-backed metrics.LockMetrics, or nil
// if metrics.Init has not been called (zero overhead).
func NewLockMetrics() metrics.LockMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.Registry()

	return &lockMetrics{
		acquires: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "pjrmi_lock_acquires_total",
			Help: "Total successful lock acquisitions by mode",
		}, []string{"mode"}),
		waitTime: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pjrmi_lock_wait_seconds",
			Help:    "Time spent waiting for a lock before it was granted",
			Buckets: prometheus.DefBuckets,
		}, []string{"mode"}),
		contention: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "pjrmi_lock_contention_total",
			Help: "Total acquire attempts that had to wait, by lock name",
		}, []string{"lock_name"}),
		deadlocks: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "pjrmi_lock_deadlocks_total",
			Help: "Total deadlock cycles detected in the wait-for graph",
		}),
		timeouts: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "pjrmi_lock_timeouts_total",
			Help: "Total acquire attempts that timed out, by mode",
		}, []string{"mode"}),
		locksHeld: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "pjrmi_locks_held",
			Help: "Current number of distinct named locks held",
		}),
	}
}

func (m *lockMetrics) RecordAcquire(mode string, wait time.Duration) {
	if m == nil {
		return
	}
	m.acquires.WithLabelValues(mode).Inc()
	m.waitTime.WithLabelValues(mode).Observe(wait.Seconds())
}

func (m *lockMetrics) RecordContention(lockName string) {
	if m == nil {
		return
	}
	m.contention.WithLabelValues(lockName).Inc()
}

func (m *lockMetrics) RecordDeadlock() {
	if m == nil {
		return
	}
	m.deadlocks.Inc()
}

func (m *lockMetrics) RecordTimeout(mode string) {
	if m == nil {
		return
	}
	m.timeouts.WithLabelValues(mode).Inc()
}

func (m *lockMetrics) SetLocksHeld(n int) {
	if m == nil {
		return
	}
	m.locksHeld.Set(float64(n))
}
