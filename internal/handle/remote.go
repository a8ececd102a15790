package handle

import (
	"sync"
	"weak"

	"github.com/deshaw/pjrmi-go/internal/metrics"
)

// RemoteImports is the weak-cache side of the handle table: handles
// this side has received from its peer, mapped to the local shim
// wrapping them. The cache holds only weak pointers so an
// otherwise-unreferenced shim can still be collected; ImportOrFetch
// recreates it on next use.
type RemoteImports[T any] struct {
	mu      sync.Mutex
	shims   map[Handle]weak.Pointer[T]
	metrics metrics.HandleMetrics
}

// NewRemoteImports returns an empty remote import cache for shim type T
// with metrics collection disabled.
func NewRemoteImports[T any]() *RemoteImports[T] {
	return NewRemoteImportsWithMetrics[T](nil)
}

// NewRemoteImportsWithMetrics returns an empty remote import cache for
// shim type T reporting to m. A nil m disables collection with zero
// overhead.
func NewRemoteImportsWithMetrics[T any](m metrics.HandleMetrics) *RemoteImports[T] {
	return &RemoteImports[T]{shims: make(map[Handle]weak.Pointer[T]), metrics: m}
}

// ImportOrFetch returns the cached shim for h if it is still alive,
// otherwise calls fetch to build one, caches it weakly, and returns it.
func (r *RemoteImports[T]) ImportOrFetch(h Handle, fetch func() *T) *T {
	r.mu.Lock()
	if wp, ok := r.shims[h]; ok {
		if shim := wp.Value(); shim != nil {
			r.mu.Unlock()
			return shim
		}
	}
	r.mu.Unlock()

	shim := fetch()

	r.mu.Lock()
	defer r.mu.Unlock()
	// A concurrent caller may have won the race and already cached a
	// live shim; prefer it so only one shim ever represents a handle at
	// a time.
	if wp, ok := r.shims[h]; ok {
		if existing := wp.Value(); existing != nil {
			return existing
		}
	}
	r.shims[h] = weak.Make(shim)
	if r.metrics != nil {
		r.metrics.SetImportCount(len(r.shims))
	}
	return shim
}

// Peek returns the cached shim for h without fetching, or nil if absent
// or collected.
func (r *RemoteImports[T]) Peek(h Handle) *T {
	r.mu.Lock()
	defer r.mu.Unlock()
	wp, ok := r.shims[h]
	if !ok {
		return nil
	}
	return wp.Value()
}

// Forget drops h from the cache, used when RELEASE_HANDLE has been sent
// for it.
func (r *RemoteImports[T]) Forget(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.shims, h)
	if r.metrics != nil {
		r.metrics.SetImportCount(len(r.shims))
	}
}

// ReleaseAll drops every cached shim, as happens at session end.
func (r *RemoteImports[T]) ReleaseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shims = make(map[Handle]weak.Pointer[T])
}

// Len returns the number of handles currently tracked, live or
// collected.
func (r *RemoteImports[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.shims)
}
