package metrics

import "time"

// DispatchMetrics observes the dispatch engine: request
// throughput, latency, and in-flight concurrency, both for inbound
// requests and for S→C callbacks issued while servicing one. A nil
// DispatchMetrics disables collection with zero overhead.
type DispatchMetrics interface {
	// RecordRequest records a completed request of the given message
	// kind ("CALL_METHOD", "GET_FIELD", ...), its outcome ("ok" or a
	// pjerrors.Code string), and how long it took.
	RecordRequest(kind string, outcome string, d time.Duration)

	// SetInFlight records the current number of requests being
	// serviced concurrently.
	SetInFlight(n int)

	// RecordCallback records a reentrant S→C callback dispatched while
	// servicing an outer request.
	RecordCallback(outcome string, d time.Duration)
}
