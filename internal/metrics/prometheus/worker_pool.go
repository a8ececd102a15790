package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/deshaw/pjrmi-go/internal/metrics"
)

type workerPoolMetrics struct {
	poolSize     prometheus.Gauge
	growths      prometheus.Counter
	workerState  *prometheus.GaugeVec
	taskDuration prometheus.Histogram
}

// NewWorkerPoolMetrics returns a Prometheus-backed metrics.WorkerPoolMetrics,
// or nil if metrics.Init has not been called (zero overhead).
func NewWorkerPoolMetrics() metrics.WorkerPoolMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.Registry()

	return &workerPoolMetrics{
		poolSize: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "pjrmi_worker_pool_size",
			Help: "Current number of workers in the pool",
		}),
		growths: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "pjrmi_worker_pool_growths_total",
			Help: "Total number of on-demand worker pool growths",
		}),
		workerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "pjrmi_worker_pool_workers",
			Help: "Current number of workers per state",
		}, []string{"state"}),
		taskDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "pjrmi_worker_pool_task_duration_seconds",
			Help:    "Duration of worker pool task execution",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *workerPoolMetrics) SetPoolSize(n int) {
	if m == nil {
		return
	}
	m.poolSize.Set(float64(n))
}

func (m *workerPoolMetrics) RecordGrowth() {
	if m == nil {
		return
	}
	m.growths.Inc()
}

func (m *workerPoolMetrics) SetWorkerState(state string, n int) {
	if m == nil {
		return
	}
	m.workerState.WithLabelValues(state).Set(float64(n))
}

func (m *workerPoolMetrics) RecordTaskDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.taskDuration.Observe(d.Seconds())
}
