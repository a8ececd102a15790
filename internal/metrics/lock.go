package metrics

import "time"

// LockMetrics observes the named-lock manager: held
// locks, contention, wait times, and deadlock detections. A nil
// LockMetrics disables collection with zero overhead.
type LockMetrics interface {
	// RecordAcquire records a successful lock acquisition in mode
	// ("exclusive" or "shared") after waiting wait before being granted.
	RecordAcquire(mode string, wait time.Duration)

	// RecordContention records that an acquire request had to wait
	// because lockName was already held incompatibly.
	RecordContention(lockName string)

	// RecordDeadlock records a cycle detected in the wait-for graph.
	RecordDeadlock()

	// RecordTimeout records an acquire request that gave up after its
	// deadline elapsed.
	RecordTimeout(mode string)

	// SetLocksHeld records the current number of distinct locks held
	// across all logical threads.
	SetLocksHeld(n int)
}
