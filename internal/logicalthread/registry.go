// Package logicalthread implements the Logical Thread Registry: the mapping from a worker currently executing a task to the
// session-unique logical-thread id that task is running under, carried
// on every call that crosses the wire so reentrant lock acquisition and
// nested callbacks resolve against the right logical identity rather
// than the OS thread that happens to be executing them.
package logicalthread

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// ID identifies a logical thread for the life of a session. It travels
// on the wire as the frame header's logical-thread-id field
// (internal/wire.Frame.LogicalThreadID), so it is a plain uint64 rather
// than a uuid.UUID — see DESIGN.md for why the domain-stack's
// google/uuid dependency lands on lock snapshot tokens instead.
type ID uint64

// WorkerID identifies a worker pool slot. The worker pool assigns these;
// this package only ever uses them as map keys.
type WorkerID uint64

// Registry binds workers to the logical thread id their current task is
// executing under.
type Registry struct {
	mu      sync.Mutex
	byWorker map[WorkerID]ID

	nextID atomic.Uint64
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byWorker: make(map[WorkerID]ID)}
}

// NewTopLevelID allocates a fresh logical thread id, used when an
// external entry point first enters the system.
func (r *Registry) NewTopLevelID() ID {
	return ID(r.nextID.Add(1))
}

// Bind associates worker with id for the duration of its current task.
// Binding the same worker to the same id again is a harmless no-op
// (idempotent rebind, e.g. a retry of the same bind call); binding it to
// a different id while already bound is a programming error and panics
// immediately rather than silently reassigning logical identity out from
// under in-flight lock state.
func (r *Registry) Bind(worker WorkerID, id ID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byWorker[worker]; ok {
		if existing == id {
			return
		}
		panic(fmt.Sprintf("logicalthread: worker %d already bound to logical thread %d, cannot rebind to %d", worker, existing, id))
	}
	r.byWorker[worker] = id
}

// Current returns the logical thread id worker is currently executing
// under, or (0, false) if unbound.
func (r *Registry) Current(worker WorkerID) (ID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byWorker[worker]
	return id, ok
}

// Unbind clears worker's logical identity at the end of its task.
func (r *Registry) Unbind(worker WorkerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byWorker, worker)
}
