// Package workerpool implements the Worker Pool: a set
// of goroutines that run request handlers and reentrant callbacks for
// a session, sized at a configured minimum and grown on demand so a
// nested callback never deadlocks waiting for a worker that is itself
// blocked waiting on that callback's result.
package workerpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/deshaw/pjrmi-go/internal/logger"
	"github.com/deshaw/pjrmi-go/internal/metrics"
)

var (
	errClosed     = errors.New("workerpool: pool is closed")
	errAtCapacity = errors.New("workerpool: at max worker capacity with no idle worker")
)

// State is a worker's current activity, tracked so the dispatch engine
// can decide whether growing the pool is necessary before issuing a
// reentrant call.
type State int32

const (
	// StateIdle: the worker has no task and is waiting for one.
	StateIdle State = iota
	// StateBusyOnRequest: the worker is running a request handler.
	StateBusyOnRequest
	// StateBusyAwaitingResponse: the worker's handler issued a nested
	// call back across the bridge and is blocked on its response.
	StateBusyAwaitingResponse
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBusyOnRequest:
		return "busy_on_request"
	case StateBusyAwaitingResponse:
		return "busy_awaiting_response"
	default:
		return "unknown"
	}
}

// Task is a unit of work a worker runs. ctx is cancelled when the pool
// is closed; w is the worker running it, passed through so a handler
// can toggle its own state around a nested outbound call.
type Task func(ctx context.Context, w *Worker)

// Worker is a single pool goroutine's externally-visible handle. The
// dispatch engine toggles AwaitingResponse/OnRequest around a nested
// call so State reports what the worker is doing. Pool.CanAcceptCallback
// and pool growth do not read worker state.
type Worker struct {
	id    uint64
	state atomic.Int32
	tasks chan Task
	pool  *Pool
}

// ID returns the worker's pool-unique id, useful for logging.
func (w *Worker) ID() uint64 { return w.id }

// State returns the worker's current activity.
func (w *Worker) State() State { return State(w.state.Load()) }

// MarkAwaitingResponse records that this worker's handler is now
// blocked on a nested call's response. The worker stays assigned to its
// task; the pool does not consult this state when deciding to grow.
func (w *Worker) MarkAwaitingResponse() { w.state.Store(int32(StateBusyAwaitingResponse)) }

// MarkOnRequest records that this worker's handler has resumed after
// a nested call returned.
func (w *Worker) MarkOnRequest() { w.state.Store(int32(StateBusyOnRequest)) }

// Pool is a growable set of workers. A Pool is created with a minimum
// size and grows past it only when every current worker is busy and a
// new task still needs to run.
type Pool struct {
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	min     int
	max     int // 0 means unbounded
	nextID  uint64
	workers map[uint64]*Worker
	idle    []*Worker
	closed  bool
	wg      sync.WaitGroup
	metrics metrics.WorkerPoolMetrics
}

// Options configures a new Pool.
type Options struct {
	// Min is the number of workers started eagerly. Must be >= 1.
	Min int
	// Max caps total worker count; 0 means unbounded growth.
	Max int
	// Metrics receives pool size, growth, and worker-state observations.
	// Nil disables collection.
	Metrics metrics.WorkerPoolMetrics
}

// New starts a pool with opts.Min workers running immediately.
func New(opts Options) *Pool {
	if opts.Min < 1 {
		opts.Min = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		ctx:     ctx,
		cancel:  cancel,
		min:     opts.Min,
		max:     opts.Max,
		workers: make(map[uint64]*Worker),
		metrics: opts.Metrics,
	}
	for i := 0; i < opts.Min; i++ {
		p.spawnLocked()
	}
	if p.metrics != nil {
		p.metrics.SetPoolSize(len(p.workers))
	}
	return p
}

// spawnLocked starts one more worker goroutine. Caller holds p.mu.
func (p *Pool) spawnLocked() *Worker {
	p.nextID++
	w := &Worker{id: p.nextID, tasks: make(chan Task, 1), pool: p}
	p.workers[w.id] = w
	p.idle = append(p.idle, w)

	p.wg.Add(1)
	go p.run(w)
	return w
}

func (p *Pool) run(w *Worker) {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case task, ok := <-w.tasks:
			if !ok {
				return
			}
			w.MarkOnRequest()
			start := time.Now()
			task(p.ctx, w)
			if p.metrics != nil {
				p.metrics.RecordTaskDuration(time.Since(start))
			}
			w.state.Store(int32(StateIdle))
			p.release(w)
		}
	}
}

func (p *Pool) release(w *Worker) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.idle = append(p.idle, w)
}

// Submit dispatches task to an idle worker, growing the pool by one
// if none is idle and growth is allowed. It returns the worker the task was handed to, or an error
// if the pool is closed or already at its configured maximum with no
// idle worker available.
func (p *Pool) Submit(task Task) (*Worker, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, errClosed
	}

	var w *Worker
	if n := len(p.idle); n > 0 {
		w = p.idle[n-1]
		p.idle = p.idle[:n-1]
	} else if p.max == 0 || len(p.workers) < p.max {
		w = p.spawnLocked()
		p.idle = p.idle[:len(p.idle)-1] // just-spawned worker is about to receive a task
		logger.Debug("workerpool: grew pool", logger.WorkerCount(len(p.workers)))
		if p.metrics != nil {
			p.metrics.RecordGrowth()
			p.metrics.SetPoolSize(len(p.workers))
		}
	} else {
		p.mu.Unlock()
		return nil, errAtCapacity
	}
	// Sent while still holding the lock so Close cannot close this
	// worker's channel out from under a concurrent send.
	w.tasks <- task
	p.mu.Unlock()
	return w, nil
}

// Size returns the current number of live workers.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// CanAcceptCallback reports whether the pool can currently run a
// reentrant callback without deadlocking: it needs an idle worker, or
// room to grow one. Workers awaiting a nested response count as busy.
func (p *Pool) CanAcceptCallback() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.idle) > 0 {
		return true
	}
	return p.max == 0 || len(p.workers) < p.max
}

// Close stops accepting new tasks, cancels every in-flight task's
// context, and waits for all worker goroutines to exit.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	for _, w := range p.workers {
		close(w.tasks)
	}
	p.wg.Wait()
}
