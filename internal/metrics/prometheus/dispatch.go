package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/deshaw/pjrmi-go/internal/metrics"
)

type dispatchMetrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge
	callbacks       *prometheus.CounterVec
	callbackLatency *prometheus.HistogramVec
}

// NewDispatchMetrics returns a Prometheus-backed metrics.DispatchMetrics,
// or nil if metrics.Init has not been called (zero overhead).
func NewDispatchMetrics() metrics.DispatchMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.Registry()

	return &dispatchMetrics{
		requests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "pjrmi_dispatch_requests_total",
			Help: "Total requests dispatched by message kind and outcome",
		}, []string{"kind", "outcome"}),
		requestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pjrmi_dispatch_request_duration_seconds",
			Help:    "Duration of a request from receipt to reply",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		inFlight: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "pjrmi_dispatch_requests_in_flight",
			Help: "Current number of requests being serviced concurrently",
		}),
		callbacks: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "pjrmi_dispatch_callbacks_total",
			Help: "Total S-to-C reentrant callbacks dispatched, by outcome",
		}, []string{"outcome"}),
		callbackLatency: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pjrmi_dispatch_callback_duration_seconds",
			Help:    "Duration of an S-to-C reentrant callback",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
	}
}

func (m *dispatchMetrics) RecordRequest(kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(kind, outcome).Inc()
	m.requestDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *dispatchMetrics) SetInFlight(n int) {
	if m == nil {
		return
	}
	m.inFlight.Set(float64(n))
}

func (m *dispatchMetrics) RecordCallback(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.callbacks.WithLabelValues(outcome).Inc()
	m.callbackLatency.WithLabelValues(outcome).Observe(d.Seconds())
}
