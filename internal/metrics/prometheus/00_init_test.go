package prometheus

import (
	"testing"

	io_prometheus_client "github.com/prometheus/client_model/go"

	"github.com/deshaw/pjrmi-go/internal/metrics"
)

// TestConstructors_DisabledReturnNil must run before any other test in
// this package calls metrics.Init, since metrics.enabled is process-wide
// state with no reset. Go runs a package's tests in file, then
// declaration, order, and "00_init_test.go" sorts first.
func TestConstructors_DisabledReturnNil(t *testing.T) {
	if metrics.IsEnabled() {
		t.Fatal("metrics already enabled before any test ran; constructors-return-nil test is meaningless")
	}
	if m := NewWorkerPoolMetrics(); m != nil {
		t.Error("NewWorkerPoolMetrics returned non-nil while disabled")
	}
	if m := NewLockMetrics(); m != nil {
		t.Error("NewLockMetrics returned non-nil while disabled")
	}
	if m := NewDispatchMetrics(); m != nil {
		t.Error("NewDispatchMetrics returned non-nil while disabled")
	}
	if m := NewHandleMetrics(); m != nil {
		t.Error("NewHandleMetrics returned non-nil while disabled")
	}
}

// findFamily returns the gathered metric family named name, or nil.
func findFamily(mfs []*io_prometheus_client.MetricFamily, name string) *io_prometheus_client.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func requireFamilies(t *testing.T, mfs []*io_prometheus_client.MetricFamily, names ...string) {
	t.Helper()
	for _, name := range names {
		if findFamily(mfs, name) == nil {
			t.Errorf("expected metric family %q, not found", name)
		}
	}
}
