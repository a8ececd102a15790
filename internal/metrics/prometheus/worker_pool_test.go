package prometheus

import (
	"testing"
	"time"

	"github.com/deshaw/pjrmi-go/internal/metrics"
)

func TestWorkerPoolMetrics_RecordsObservations(t *testing.T) {
	metrics.Init()

	m := NewWorkerPoolMetrics()
	if m == nil {
		t.Fatal("NewWorkerPoolMetrics returned nil with metrics enabled")
	}

	m.SetPoolSize(3)
	m.RecordGrowth()
	m.SetWorkerState("idle", 2)
	m.RecordTaskDuration(50 * time.Millisecond)

	mfs, err := metrics.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	requireFamilies(t, mfs,
		"pjrmi_worker_pool_size",
		"pjrmi_worker_pool_growths_total",
		"pjrmi_worker_pool_workers",
		"pjrmi_worker_pool_task_duration_seconds",
	)

	sizeFam := findFamily(mfs, "pjrmi_worker_pool_size")
	if got := sizeFam.GetMetric()[0].GetGauge().GetValue(); got != 3 {
		t.Errorf("pjrmi_worker_pool_size = %v, want 3", got)
	}
}

func TestWorkerPoolMetrics_NilReceiverSafe(t *testing.T) {
	var m *workerPoolMetrics
	m.SetPoolSize(1)
	m.RecordGrowth()
	m.SetWorkerState("busy", 1)
	m.RecordTaskDuration(time.Second)
}
