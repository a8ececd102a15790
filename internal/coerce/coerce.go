// Package coerce implements the Value Coercer: the
// outbound and inbound conversion between Go values and wire.Values,
// including smallest-representable-type fitting for untyped numerics,
// container by-value conversion, the shared-memory fast path for large
// homogeneous numeric arrays, and the extensibility chain of typed-scalar
// fast path, per-class formatter hook, default rules, and last-resort
// remote conversion.
package coerce

import (
	"reflect"

	"github.com/deshaw/pjrmi-go/internal/handle"
	"github.com/deshaw/pjrmi-go/internal/pjerrors"
	"github.com/deshaw/pjrmi-go/internal/shm"
	"github.com/deshaw/pjrmi-go/internal/typedesc"
	"github.com/deshaw/pjrmi-go/internal/wire"
)

// Formatter is a registered per-class conversion hook. It returns ok=false to decline,
// falling through to the default rules.
type Formatter func(v any) (val wire.Value, ok bool, err error)

// RemoteConverter is the coercer's last resort: invoke a remote function
// to produce the wire representation of an otherwise-unconvertible value.
type RemoteConverter func(v any) (wire.Value, error)

// ShimFactory resolves an inbound handle to a local shim object,
// fetching or constructing one of the advertised TypeDescriptor. It is
// implemented by internal/proxybridge, which backs it with a
// handle.RemoteImports cache; coerce depends only on this narrow
// interface to avoid a generic-instantiation dependency on a concrete
// shim type.
type ShimFactory interface {
	ShimFor(h handle.Handle, typeID uint64) (any, error)
}

// RemoteShim is implemented by an already-materialized shim for a
// remote object. When EncodeOutbound sees one, it emits the handle
// directly instead of re-exporting the shim as a new local object.
type RemoteShim interface {
	RemoteHandle() handle.Handle
	RemoteTypeID() uint64
}

// Callback is a Go function exposed to the peer as a lambda handle.
type Callback func(args []wire.Value) (wire.Value, error)

// Boxed wraps an inbound immutable scalar (number or string) together
// with the handle it originated from, if any, so that identity is
// preserved when the same value later flows back outbound.
type Boxed struct {
	Value        any
	OriginHandle handle.Handle
	HasHandle    bool
}

// Coercer converts values in both directions across the wire boundary.
type Coercer struct {
	exports  *handle.LocalExports
	registry *typedesc.Registry
	shims    ShimFactory

	shmChannel        *shm.Channel
	shmEnabled        bool
	shmThresholdBytes int64

	formatters    map[string]Formatter
	remoteConvert RemoteConverter
}

// Options configures a new Coercer.
type Options struct {
	Exports           *handle.LocalExports
	Registry          *typedesc.Registry
	Shims             ShimFactory
	ShmChannel        *shm.Channel // nil disables the shared-memory path
	ShmThresholdBytes int64
}

// New returns a Coercer configured per opts.
func New(opts Options) *Coercer {
	return &Coercer{
		exports:           opts.Exports,
		registry:          opts.Registry,
		shims:             opts.Shims,
		shmChannel:        opts.ShmChannel,
		shmEnabled:        opts.ShmChannel != nil,
		shmThresholdBytes: opts.ShmThresholdBytes,
		formatters:        make(map[string]Formatter),
	}
}

// RegisterFormatter installs a per-class conversion hook for Go values
// whose concrete type name (package path plus type name) equals
// typeName.
func (c *Coercer) RegisterFormatter(typeName string, f Formatter) {
	c.formatters[typeName] = f
}

// SetRemoteConverter installs the last-resort remote-conversion hook.
func (c *Coercer) SetRemoteConverter(f RemoteConverter) {
	c.remoteConvert = f
}

func goTypeName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return ""
	}
	if t.PkgPath() == "" {
		return t.Name()
	}
	return t.PkgPath() + "." + t.Name()
}

func coercionFailed(v any, reason string) *pjerrors.BridgeError {
	return pjerrors.New(pjerrors.CodeCoercionFailed, "coerce: cannot convert %T: %s", v, reason)
}
