package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/deshaw/pjrmi-go/internal/metrics"
)

type handleMetrics struct {
	exports     prometheus.Counter
	releases    prometheus.Counter
	exportCount prometheus.Gauge
	importCount prometheus.Gauge
}

// NewHandleMetrics returns a Prometheus-backed metrics.HandleMetrics, or
// nil if metrics.Init has not been called (zero overhead).
func NewHandleMetrics() metrics.HandleMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.Registry()

	return &handleMetrics{
		exports: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "pjrmi_handle_exports_total",
			Help: "Total local objects exported to the peer",
		}),
		releases: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "pjrmi_handle_releases_total",
			Help: "Total local exports released at zero refcount",
		}),
		exportCount: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "pjrmi_handle_export_table_size",
			Help: "Current size of the local exports table",
		}),
		importCount: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "pjrmi_handle_import_table_size",
			Help: "Current size of the remote imports table",
		}),
	}
}

func (m *handleMetrics) RecordExport() {
	if m == nil {
		return
	}
	m.exports.Inc()
}

func (m *handleMetrics) RecordRelease() {
	if m == nil {
		return
	}
	m.releases.Inc()
}

func (m *handleMetrics) SetExportCount(n int) {
	if m == nil {
		return
	}
	m.exportCount.Set(float64(n))
}

func (m *handleMetrics) SetImportCount(n int) {
	if m == nil {
		return
	}
	m.importCount.Set(float64(n))
}
