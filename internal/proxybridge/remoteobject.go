package proxybridge

import (
	"context"

	"github.com/deshaw/pjrmi-go/internal/handle"
	"github.com/deshaw/pjrmi-go/internal/logger"
	"github.com/deshaw/pjrmi-go/internal/logicalthread"
	"github.com/deshaw/pjrmi-go/internal/pjerrors"
	"github.com/deshaw/pjrmi-go/internal/wire"
)

// RemoteObject is the local shim for a handle the peer exported to us:
// a live reference to an object that actually lives on the other side
// of the connection. It satisfies coerce.RemoteShim, so sending it back
// outbound re-emits the original handle instead of re-exporting it.
type RemoteObject struct {
	bridge *Bridge
	handle handle.Handle
	typeID uint64
}

// RemoteHandle implements coerce.RemoteShim.
func (o *RemoteObject) RemoteHandle() handle.Handle { return o.handle }

// RemoteTypeID implements coerce.RemoteShim.
func (o *RemoteObject) RemoteTypeID() uint64 { return o.typeID }

// Invoke calls method member on the remote object with args, under
// logical thread lt, and returns the decoded result. It
// does not resolve an overload itself: the owning side does that
// against its own authoritative TypeDescriptor when the CALL_METHOD
// frame arrives.
func (o *RemoteObject) Invoke(ctx context.Context, lt logicalthread.ID, member string, args ...any) (any, error) {
	encoded := make([]wire.Value, len(args))
	for i, a := range args {
		v, err := o.bridge.coercer.EncodeOutbound(a)
		if err != nil {
			return nil, err
		}
		encoded[i] = v
	}

	payload := encodeCallMethodPayload(o.handle, member, encoded)
	frame, err := o.bridge.caller.Call(ctx, wire.KindCallMethod, payload, lt)
	if err != nil {
		return nil, err
	}
	logger.Debug("proxybridge: invoked remote method",
		logger.Handle(uint64(o.handle)), logger.Member(member), logger.LogicalThreadID(ltField(lt)))
	return o.bridge.decodeResultFrame(frame)
}

// GetField fetches the named field's current value.
func (o *RemoteObject) GetField(ctx context.Context, lt logicalthread.ID, name string) (any, error) {
	payload := encodeFieldPayload(o.handle, name, nil)
	frame, err := o.bridge.caller.Call(ctx, wire.KindGetField, payload, lt)
	if err != nil {
		return nil, err
	}
	return o.bridge.decodeResultFrame(frame)
}

// SetField sets the named field to value.
func (o *RemoteObject) SetField(ctx context.Context, lt logicalthread.ID, name string, value any) error {
	v, err := o.bridge.coercer.EncodeOutbound(value)
	if err != nil {
		return err
	}
	payload := encodeFieldPayload(o.handle, name, &v)
	frame, err := o.bridge.caller.Call(ctx, wire.KindSetField, payload, lt)
	if err != nil {
		return err
	}
	if frame.Kind == wire.KindError {
		return decodeErrorFrame(frame)
	}
	return nil
}

// decodeResultFrame turns a RESULT/ERROR reply frame into (value, nil)
// or (nil, err).
func (b *Bridge) decodeResultFrame(frame wire.Frame) (any, error) {
	if frame.Kind == wire.KindError {
		return nil, decodeErrorFrame(frame)
	}
	r := wire.NewReader(frame.Payload)
	v, err := wire.ReadValue(r)
	if err != nil {
		return nil, pjerrors.New(pjerrors.CodeProtocolError, "proxybridge: malformed result frame: %v", err)
	}
	return b.coercer.DecodeInbound(v)
}

// decodeErrorFrame reconstructs the BridgeError an ERROR frame's
// payload carries (just the message text; the remote Code is not
// re-derived since it is opaque to this side beyond "this call
// failed").
func decodeErrorFrame(frame wire.Frame) error {
	return pjerrors.New(pjerrors.CodeRemoteException, "%s", string(frame.Payload))
}
