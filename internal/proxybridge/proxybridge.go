// Package proxybridge implements the Proxy/Lambda Bridge: turning a received handle into a locally callable shim that
// forwards method calls and field access back across the wire, and
// answering the peer's inbound CALL_METHOD, GET_FIELD, SET_FIELD,
// INVOKE_PROXY_CALLBACK, and RELEASE_HANDLE frames against this side's
// real local exports.
//
// A RemoteObject is the C-side view of an S-object: invoking a method
// on it just encodes the call and waits for the reply. Resolution of
// which overload to run happens on the side that actually owns the
// object (see Bridge.Handle), the same way a real RPC only needs the
// callee to reflect on its own method set.
package proxybridge

import (
	"context"
	"strconv"

	"github.com/deshaw/pjrmi-go/internal/coerce"
	"github.com/deshaw/pjrmi-go/internal/handle"
	"github.com/deshaw/pjrmi-go/internal/logicalthread"
	"github.com/deshaw/pjrmi-go/internal/pjerrors"
	"github.com/deshaw/pjrmi-go/internal/typedesc"
	"github.com/deshaw/pjrmi-go/internal/wire"
)

// Caller is the narrow slice of internal/dispatch.Engine the bridge
// needs to issue an outbound call: send a frame, wait for its
// RESULT/ERROR reply. Depending on this instead of *dispatch.Engine
// keeps the bridge testable without a real connection.
type Caller interface {
	Call(ctx context.Context, kind wire.MessageKind, payload []byte, lt logicalthread.ID) (wire.Frame, error)
}

// Bridge owns the remote-shim cache and answers inbound calls against
// the local export table. One Bridge serves one session.
type Bridge struct {
	caller   Caller
	registry *typedesc.Registry
	exports  *handle.LocalExports
	coercer  *coerce.Coercer

	imports *handle.RemoteImports[RemoteObject]

	// allowed, when non-nil, gates every inbound CALL_METHOD/GET_FIELD/
	// SET_FIELD by class name.
	// A nil allowed means no restriction.
	allowed func(className string) bool
}

// New returns a Bridge wired to caller for outbound calls. coercer may
// be installed later with SetCoercer if it needs a back-reference to
// this Bridge as its ShimFactory (the same construction-order problem
// internal/typedesc.Registry.SetProvider solves).
func New(caller Caller, registry *typedesc.Registry, exports *handle.LocalExports, coercer *coerce.Coercer) *Bridge {
	return &Bridge{
		caller:   caller,
		registry: registry,
		exports:  exports,
		coercer:  coercer,
		imports:  handle.NewRemoteImports[RemoteObject](),
	}
}

// SetCoercer installs the Coercer after construction.
func (b *Bridge) SetCoercer(c *coerce.Coercer) { b.coercer = c }

// SetCaller installs the outbound Caller after construction, the same
// deferred-wiring need SetCoercer solves: a session typically builds the
// Bridge before the dispatch.Engine that will serve as its Caller exists.
func (b *Bridge) SetCaller(c Caller) { b.caller = c }

// SetAllowList installs allowed as the class-name gate every inbound
// call checks before touching an export. Pass nil to disable the check.
func (b *Bridge) SetAllowList(allowed func(className string) bool) {
	b.allowed = allowed
}

// checkAllowed returns a CodeAccessDenied error if className is not
// permitted under the active allow-list.
func (b *Bridge) checkAllowed(className string) error {
	if b.allowed == nil || b.allowed(className) {
		return nil
	}
	return pjerrors.AccessDenied(className)
}

// ShimFor implements coerce.ShimFactory: it returns the cached
// RemoteObject for h, fetching (constructing) one on first reference.
func (b *Bridge) ShimFor(h handle.Handle, typeID uint64) (any, error) {
	obj := b.imports.ImportOrFetch(h, func() *RemoteObject {
		return &RemoteObject{bridge: b, handle: h, typeID: typeID}
	})
	return obj, nil
}

func ltField(lt logicalthread.ID) string { return strconv.FormatUint(uint64(lt), 10) }
