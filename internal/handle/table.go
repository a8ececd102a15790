// Package handle implements the two handle tables every session side
// owns: local exports (strong references with a refcount) and remote
// imports (a weak shim cache).
package handle

import (
	"sync"
	"sync/atomic"

	"github.com/deshaw/pjrmi-go/internal/metrics"
)

// Handle identifies a remote-object reference on the wire. It is never
// reused within a session.
type Handle uint64

// exportEntry is a local object's strong reference plus its refcount.
// RefCount reaches zero exactly when no in-flight request or remote
// shim still references the handle.
type exportEntry struct {
	object   any
	typeID   uint64
	refs     atomic.Int64
	idKey    any
	hasIDKey bool
}

// LocalExports is the strong-reference side of the handle table: every
// object this side has exported to its peer, keyed by handle, plus an
// identity index so re-exporting the same object returns the same
// handle.
type LocalExports struct {
	mu      sync.Mutex
	next    uint64
	entries map[Handle]*exportEntry
	byIdent map[any]Handle
	metrics metrics.HandleMetrics
}

// NewLocalExports returns an empty local export table with metrics
// collection disabled.
func NewLocalExports() *LocalExports {
	return NewLocalExportsWithMetrics(nil)
}

// NewLocalExportsWithMetrics returns an empty local export table
// reporting to m. A nil m disables collection with zero overhead.
func NewLocalExportsWithMetrics(m metrics.HandleMetrics) *LocalExports {
	return &LocalExports{
		entries: make(map[Handle]*exportEntry),
		byIdent: make(map[any]Handle),
		metrics: m,
	}
}

// identityKey returns (key, ok): ok is false when obj's concrete type is
// not comparable (e.g. a slice or map), in which case identity-based
// deduplication is impossible and every Export call allocates a fresh
// handle — correct but not idempotent, which is the best any runtime can
// do for host values that expose no stable identity.
func identityKey(obj any) (key any, comparable bool) {
	comparable = true
	func() {
		defer func() {
			if recover() != nil {
				comparable = false
			}
		}()
		m := map[any]struct{}{obj: {}}
		_ = m
	}()
	return obj, comparable
}

// Export allocates (or reuses, for an identity-equal object already
// exported) a handle for obj and increments its refcount by one. It
// returns the handle and the object's TypeDescriptor id.
func (t *LocalExports) Export(obj any, typeID uint64) Handle {
	key, hasKey := identityKey(obj)

	t.mu.Lock()
	defer t.mu.Unlock()

	if hasKey {
		if h, ok := t.byIdent[key]; ok {
			t.entries[h].refs.Add(1)
			return h
		}
	}

	t.next++
	h := Handle(t.next)
	e := &exportEntry{object: obj, typeID: typeID, idKey: key, hasIDKey: hasKey}
	e.refs.Store(1)
	t.entries[h] = e
	if hasKey {
		t.byIdent[key] = h
	}
	if t.metrics != nil {
		t.metrics.RecordExport()
		t.metrics.SetExportCount(len(t.entries))
	}
	return h
}

// Lookup returns the object and type id behind h, or (nil, 0, false) if
// h is not a live local export.
func (t *LocalExports) Lookup(h Handle) (obj any, typeID uint64, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, found := t.entries[h]
	if !found {
		return nil, 0, false
	}
	return e.object, e.typeID, true
}

// Incref adds delta to h's refcount. Used when an already-exported
// handle is transmitted again.
func (t *LocalExports) Incref(h Handle, delta int64) {
	t.mu.Lock()
	e, ok := t.entries[h]
	t.mu.Unlock()
	if ok {
		e.refs.Add(delta)
	}
}

// Decref subtracts count from h's refcount and frees the entry once it
// reaches zero. count is carried on the wire rather than treated as a
// signal so that a RELEASE_HANDLE crossing a re-export in flight nets
// out correctly.
func (t *LocalExports) Decref(h Handle, count int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[h]
	if !ok {
		return
	}
	if e.refs.Add(-count) <= 0 {
		delete(t.entries, h)
		if e.hasIDKey {
			delete(t.byIdent, e.idKey)
		}
		if t.metrics != nil {
			t.metrics.RecordRelease()
			t.metrics.SetExportCount(len(t.entries))
		}
	}
}

// RefCount returns h's current refcount, or 0 if h is not live.
func (t *LocalExports) RefCount(h Handle) int64 {
	t.mu.Lock()
	e, ok := t.entries[h]
	t.mu.Unlock()
	if !ok {
		return 0
	}
	return e.refs.Load()
}

// Len returns the number of live local exports.
func (t *LocalExports) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// ReleaseAll drops every local export, as happens at session end.
func (t *LocalExports) ReleaseAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[Handle]*exportEntry)
	t.byIdent = make(map[any]Handle)
}
