package metrics

import "time"

// WorkerPoolMetrics observes the worker pool: its size,
// growth under re-entrant load, and how busy its workers are. A nil
// WorkerPoolMetrics disables collection with zero overhead.
type WorkerPoolMetrics interface {
	// SetPoolSize records the pool's current worker count.
	SetPoolSize(n int)

	// RecordGrowth records that the pool grew by one worker because a
	// task was submitted while no worker was idle.
	RecordGrowth()

	// SetWorkerState records the number of workers currently in state
	// ("idle", "busy", or "blocked").
	SetWorkerState(state string, n int)

	// RecordTaskDuration records how long a submitted task ran.
	RecordTaskDuration(d time.Duration)
}
