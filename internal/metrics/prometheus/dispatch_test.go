package prometheus

import (
	"testing"
	"time"

	"github.com/deshaw/pjrmi-go/internal/metrics"
)

func TestDispatchMetrics_RecordsObservations(t *testing.T) {
	metrics.Init()

	m := NewDispatchMetrics()
	if m == nil {
		t.Fatal("NewDispatchMetrics returned nil with metrics enabled")
	}

	m.RecordRequest("CALL_METHOD", "ok", 5*time.Millisecond)
	m.RecordRequest("GET_FIELD", "rejected", time.Millisecond)
	m.SetInFlight(7)
	m.RecordCallback("ok", 2*time.Millisecond)

	mfs, err := metrics.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	requireFamilies(t, mfs,
		"pjrmi_dispatch_requests_total",
		"pjrmi_dispatch_request_duration_seconds",
		"pjrmi_dispatch_requests_in_flight",
		"pjrmi_dispatch_callbacks_total",
		"pjrmi_dispatch_callback_duration_seconds",
	)

	inFlightFam := findFamily(mfs, "pjrmi_dispatch_requests_in_flight")
	if got := inFlightFam.GetMetric()[0].GetGauge().GetValue(); got != 7 {
		t.Errorf("pjrmi_dispatch_requests_in_flight = %v, want 7", got)
	}
}

func TestDispatchMetrics_NilReceiverSafe(t *testing.T) {
	var m *dispatchMetrics
	m.RecordRequest("CALL_METHOD", "ok", time.Second)
	m.SetInFlight(1)
	m.RecordCallback("error", time.Second)
}
