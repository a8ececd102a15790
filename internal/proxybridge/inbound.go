package proxybridge

import (
	"context"
	"reflect"

	"github.com/deshaw/pjrmi-go/internal/coerce"
	"github.com/deshaw/pjrmi-go/internal/logger"
	"github.com/deshaw/pjrmi-go/internal/pjerrors"
	"github.com/deshaw/pjrmi-go/internal/resolve"
	"github.com/deshaw/pjrmi-go/internal/typedesc"
	"github.com/deshaw/pjrmi-go/internal/wire"
)

// Handle implements dispatch.Handler for the message kinds the
// Proxy/Lambda Bridge owns: calls, field access, and reentrant
// callbacks against this side's real local exports, plus handle
// refcount teardown. Session-level kinds (handshake, type descriptor
// exchange, locks) belong to whatever wraps this Handle in a dispatch
// table of its own.
func (b *Bridge) Handle(ctx context.Context, f wire.Frame) wire.Frame {
	switch f.Kind {
	case wire.KindCallMethod:
		return b.handleCallMethod(f)
	case wire.KindGetField:
		return b.handleGetField(f)
	case wire.KindSetField:
		return b.handleSetField(f)
	case wire.KindInvokeProxyCallback:
		return b.handleInvokeProxyCallback(f)
	case wire.KindReleaseHandle:
		return b.handleReleaseHandle(f)
	default:
		return errFrame(f, pjerrors.New(pjerrors.CodeProtocolError, "proxybridge: unsupported message kind %s", f.Kind.String()))
	}
}

func (b *Bridge) handleCallMethod(f wire.Frame) wire.Frame {
	h, member, rawArgs, err := decodeCallMethodPayload(f.Payload)
	if err != nil {
		return errFrame(f, err)
	}

	obj, typeID, ok := b.exports.Lookup(h)
	if !ok {
		return errFrame(f, pjerrors.NoSuchHandle(uint64(h)))
	}

	desc := b.registry.ByID(typeID)
	if desc == nil {
		return errFrame(f, pjerrors.New(pjerrors.CodeNoSuchClass, "proxybridge: no type descriptor for id %d", typeID))
	}
	if err := b.checkAllowed(desc.Name); err != nil {
		return errFrame(f, err)
	}

	candidates := desc.MethodsNamed(member)
	resolveArgs := make([]resolve.Arg, len(rawArgs))
	for i, a := range rawArgs {
		resolveArgs[i] = b.resolveArg(a)
	}
	if _, err := resolve.Resolve(b.registry, desc.Name, member, candidates, resolveArgs); err != nil {
		return errFrame(f, err)
	}

	decoded := make([]any, len(rawArgs))
	for i, a := range rawArgs {
		dv, err := b.coercer.DecodeInbound(a)
		if err != nil {
			return errFrame(f, err)
		}
		decoded[i] = dv
	}

	result, err := invokeReflect(obj, member, decoded)
	if err != nil {
		return errFrame(f, err)
	}

	logger.Debug("proxybridge: dispatched call", logger.Handle(uint64(h)), logger.Member(member))
	return b.resultFrame(f, result)
}

func (b *Bridge) handleGetField(f wire.Frame) wire.Frame {
	h, name, _, err := decodeFieldPayload(f.Payload)
	if err != nil {
		return errFrame(f, err)
	}

	obj, typeID, ok := b.exports.Lookup(h)
	if !ok {
		return errFrame(f, pjerrors.NoSuchHandle(uint64(h)))
	}
	if desc := b.registry.ByID(typeID); desc != nil {
		if err := b.checkAllowed(desc.Name); err != nil {
			return errFrame(f, err)
		}
	}

	rv := reflect.ValueOf(obj)
	for rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return errFrame(f, pjerrors.NoSuchField(rv.Type().String(), name))
	}
	fv := rv.FieldByName(name)
	if !fv.IsValid() {
		return errFrame(f, pjerrors.NoSuchField(rv.Type().String(), name))
	}
	return b.resultFrame(f, fv.Interface())
}

func (b *Bridge) handleSetField(f wire.Frame) wire.Frame {
	h, name, value, err := decodeFieldPayload(f.Payload)
	if err != nil {
		return errFrame(f, err)
	}
	if value == nil {
		return errFrame(f, pjerrors.New(pjerrors.CodeProtocolError, "proxybridge: SET_FIELD missing value"))
	}

	obj, typeID, ok := b.exports.Lookup(h)
	if !ok {
		return errFrame(f, pjerrors.NoSuchHandle(uint64(h)))
	}
	if desc := b.registry.ByID(typeID); desc != nil {
		if err := b.checkAllowed(desc.Name); err != nil {
			return errFrame(f, err)
		}
	}

	rv := reflect.ValueOf(obj)
	for rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return errFrame(f, pjerrors.NoSuchField(rv.Type().String(), name))
	}
	fv := rv.FieldByName(name)
	if !fv.IsValid() || !fv.CanSet() {
		return errFrame(f, pjerrors.NoSuchField(rv.Type().String(), name))
	}

	decoded, err := b.coercer.DecodeInbound(*value)
	if err != nil {
		return errFrame(f, err)
	}
	cv, err := convertArg(decoded, fv.Type())
	if err != nil {
		return errFrame(f, err)
	}
	fv.Set(cv)

	return wire.Frame{Kind: wire.KindResult, RequestID: f.RequestID, LogicalThreadID: f.LogicalThreadID}
}

func (b *Bridge) handleInvokeProxyCallback(f wire.Frame) wire.Frame {
	h, rawArgs, err := decodeCallbackPayload(f.Payload)
	if err != nil {
		return errFrame(f, err)
	}

	obj, _, ok := b.exports.Lookup(h)
	if !ok {
		return errFrame(f, pjerrors.NoSuchHandle(uint64(h)))
	}
	cb, ok := obj.(coerce.Callback)
	if !ok {
		return errFrame(f, pjerrors.New(pjerrors.CodeTypeMismatch, "proxybridge: handle %d is not a callback", uint64(h)))
	}

	result, err := cb(rawArgs)
	if err != nil {
		return errFrame(f, err)
	}
	w := wire.NewWriter()
	wire.WriteValue(w, result)
	return wire.Frame{Kind: wire.KindResult, RequestID: f.RequestID, LogicalThreadID: f.LogicalThreadID, Payload: w.Bytes()}
}

func (b *Bridge) handleReleaseHandle(f wire.Frame) wire.Frame {
	h, count, err := decodeReleaseHandlePayload(f.Payload)
	if err != nil {
		return errFrame(f, err)
	}
	b.exports.Decref(h, count)
	logger.Debug("proxybridge: released handle", logger.Handle(uint64(h)))
	return wire.Frame{Kind: wire.KindResult, RequestID: f.RequestID, LogicalThreadID: f.LogicalThreadID}
}

// resolveArg builds the resolve.Arg describing one already-encoded wire
// argument, for the method resolver's candidate ranking.
func (b *Bridge) resolveArg(v wire.Value) resolve.Arg {
	switch v.Kind {
	case wire.ValueNull:
		return resolve.Arg{IsNull: true}
	case wire.ValueLambdaHandle:
		return resolve.Arg{IsCallable: true}
	case wire.ValueHandle:
		return resolve.Arg{TypeID: v.TypeID}
	default:
		name := primitiveNameFor(v.Kind)
		if name == "" {
			return resolve.Arg{}
		}
		desc := b.registry.ByName(name)
		if desc == nil {
			return resolve.Arg{}
		}
		return resolve.Arg{TypeID: desc.ID}
	}
}

func primitiveNameFor(k wire.ValueKind) string {
	switch k {
	case wire.ValueBool:
		return typedesc.PrimitiveBoolean
	case wire.ValueInt8:
		return typedesc.PrimitiveByte
	case wire.ValueInt16:
		return typedesc.PrimitiveShort
	case wire.ValueInt32:
		return typedesc.PrimitiveInt
	case wire.ValueInt64:
		return typedesc.PrimitiveLong
	case wire.ValueFloat32:
		return typedesc.PrimitiveFloat
	case wire.ValueFloat64:
		return typedesc.PrimitiveDouble
	case wire.ValueString:
		return typedesc.PrimitiveString
	default:
		return ""
	}
}

func errFrame(req wire.Frame, err error) wire.Frame {
	return wire.Frame{Kind: wire.KindError, RequestID: req.RequestID, LogicalThreadID: req.LogicalThreadID, Payload: []byte(err.Error())}
}

func (b *Bridge) resultFrame(req wire.Frame, result any) wire.Frame {
	v, err := b.coercer.EncodeOutbound(result)
	if err != nil {
		return errFrame(req, err)
	}
	w := wire.NewWriter()
	wire.WriteValue(w, v)
	return wire.Frame{Kind: wire.KindResult, RequestID: req.RequestID, LogicalThreadID: req.LogicalThreadID, Payload: w.Bytes()}
}
