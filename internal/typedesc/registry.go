package typedesc

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// ReflectionProvider builds a TypeDescriptor for a class name. On the S
// side this is backed by native reflection over the host language; on
// the C side it is never called directly — descriptors instead arrive
// over the wire and are installed with Publish.
type ReflectionProvider interface {
	DescribeClass(name string) (*TypeDescriptor, error)
}

// entry holds a published descriptor behind an atomic pointer so
// concurrent readers never observe a partially constructed
// TypeDescriptor: the descriptor is built in full off to the side, then
// published with a single atomic store.
type entry struct {
	desc atomic.Pointer[TypeDescriptor]
}

// Registry caches TypeDescriptors by id and by class name for the life
// of a session. Once published, an id's descriptor never changes.
type Registry struct {
	provider ReflectionProvider

	mu      sync.Mutex
	nextID  uint64
	byName  map[string]uint64
	byID    map[uint64]*entry
}

// NewRegistry returns an empty registry. provider may be nil on a pure
// client side that only ever installs descriptors received over the
// wire.
func NewRegistry(provider ReflectionProvider) *Registry {
	return &Registry{
		provider: provider,
		byName:   make(map[string]uint64),
		byID:     make(map[uint64]*entry),
	}
}

// SetProvider installs the ReflectionProvider after construction, for
// the common case where the provider itself needs a reference back to
// this registry (e.g. GoReflectionProvider resolving nested field and
// parameter types).
func (r *Registry) SetProvider(provider ReflectionProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.provider = provider
}

// allocateID reserves the next id and an empty entry for it, without
// publishing a descriptor yet. Must be called with r.mu held.
func (r *Registry) allocateID() uint64 {
	r.nextID++
	id := r.nextID
	r.byID[id] = &entry{}
	return id
}

// GetOrDescribe returns the TypeDescriptor for name, calling the
// ReflectionProvider and publishing the result on first reference.
func (r *Registry) GetOrDescribe(name string) (*TypeDescriptor, error) {
	r.mu.Lock()
	if id, ok := r.byName[name]; ok {
		e := r.byID[id]
		r.mu.Unlock()
		if d := e.desc.Load(); d != nil {
			return d, nil
		}
		return nil, fmt.Errorf("typedesc: %q is still being described", name)
	}

	if r.provider == nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("typedesc: no reflection provider configured for %q", name)
	}

	id := r.allocateID()
	r.byName[name] = id
	r.mu.Unlock()

	desc, err := r.provider.DescribeClass(name)
	if err != nil {
		return nil, fmt.Errorf("typedesc: describing %q: %w", name, err)
	}
	desc.ID = id

	r.byID[id].desc.Store(desc)
	return desc, nil
}

// Publish installs a descriptor received over the wire (the peer's side
// of §4.4's "Subsequent references use the id alone"). The caller
// supplies the id the peer assigned; this side mirrors it rather than
// allocating its own, so both sides agree on the id for this class.
func (r *Registry) Publish(id uint64, desc *TypeDescriptor) {
	desc.ID = id

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byID[id]
	if !ok {
		e = &entry{}
		r.byID[id] = e
	}
	if r.nextID < id {
		r.nextID = id
	}
	r.byName[desc.Name] = id
	e.desc.Store(desc)
}

// ByID returns the descriptor for id, or nil if unknown or not yet
// published.
func (r *Registry) ByID(id uint64) *TypeDescriptor {
	r.mu.Lock()
	e, ok := r.byID[id]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return e.desc.Load()
}

// ByName returns the descriptor cached under name, or nil if never
// referenced.
func (r *Registry) ByName(name string) *TypeDescriptor {
	r.mu.Lock()
	id, ok := r.byName[name]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return r.ByID(id)
}

// Len returns the number of ids known to the registry, published or
// pending.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}
