package coerce

import (
	"encoding/binary"
	"math"

	"github.com/deshaw/pjrmi-go/internal/wire"
)

// EncodeOutbound converts a Go value into its wire.Value, consulting, in
// order, the typed-scalar fast path, a registered per-class formatter,
// the default conversion rules, and finally the remote-conversion
// fallback.
func (c *Coercer) EncodeOutbound(v any) (wire.Value, error) {
	if val, ok := encodeTypedScalar(v); ok {
		return val, nil
	}

	if f, ok := c.formatters[goTypeName(v)]; ok {
		if val, handled, err := f(v); handled || err != nil {
			return val, err
		}
	}

	if val, ok, err := c.encodeDefault(v); ok || err != nil {
		return val, err
	}

	if c.remoteConvert != nil {
		return c.remoteConvert(v)
	}

	return wire.Value{}, coercionFailed(v, "no typed-scalar, formatter, default rule, or remote converter applies")
}

// encodeTypedScalar handles values whose Go type already names an
// explicit wire precision, honoring it rather than re-fitting.
func encodeTypedScalar(v any) (wire.Value, bool) {
	switch x := v.(type) {
	case nil:
		return wire.Null, true
	case int8:
		return wire.Value{Kind: wire.ValueInt8, Int: int64(x)}, true
	case int16:
		return wire.Value{Kind: wire.ValueInt16, Int: int64(x)}, true
	case int32:
		return wire.Value{Kind: wire.ValueInt32, Int: int64(x)}, true
	case int64:
		return wire.Value{Kind: wire.ValueInt64, Int: x}, true
	case float32:
		return wire.Value{Kind: wire.ValueFloat32, Float: float64(x)}, true
	case bool:
		return wire.Value{Kind: wire.ValueBool, Bool: x}, true
	case string:
		return wire.Value{Kind: wire.ValueString, Str: x}, true
	case []byte:
		return wire.Value{Kind: wire.ValueBytes, Bytes: x}, true
	}
	return wire.Value{}, false
}

// encodeDefault implements the outbound default rules: shim
// pass-through, untyped numeric fitting, homogeneous numeric arrays
// (shared-memory or inline), sequences, mappings, and callbacks.
func (c *Coercer) encodeDefault(v any) (wire.Value, bool, error) {
	switch x := v.(type) {
	case RemoteShim:
		return wire.HandleValue(uint64(x.RemoteHandle()), x.RemoteTypeID()), true, nil

	case int:
		return FitInt(int64(x)), true, nil
	case float64:
		return FitFloat(x), true, nil

	case []int8:
		return c.encodeNumericArray(wire.ShmInt8, x, func(buf []byte) {
			for i, e := range x {
				buf[i] = byte(e)
			}
		}), true, nil
	case []int16:
		return c.encodeNumericArray(wire.ShmInt16, x, func(buf []byte) {
			for i, e := range x {
				binary.BigEndian.PutUint16(buf[i*2:], uint16(e))
			}
		}), true, nil
	case []int32:
		return c.encodeNumericArray(wire.ShmInt32, x, func(buf []byte) {
			for i, e := range x {
				binary.BigEndian.PutUint32(buf[i*4:], uint32(e))
			}
		}), true, nil
	case []int64:
		return c.encodeNumericArray(wire.ShmInt64, x, func(buf []byte) {
			for i, e := range x {
				binary.BigEndian.PutUint64(buf[i*8:], uint64(e))
			}
		}), true, nil
	case []float32:
		return c.encodeNumericArray(wire.ShmFloat32, x, func(buf []byte) {
			for i, e := range x {
				binary.BigEndian.PutUint32(buf[i*4:], math.Float32bits(e))
			}
		}), true, nil
	case []float64:
		return c.encodeNumericArray(wire.ShmFloat64, x, func(buf []byte) {
			for i, e := range x {
				binary.BigEndian.PutUint64(buf[i*8:], math.Float64bits(e))
			}
		}), true, nil
	case []bool:
		return c.encodeNumericArray(wire.ShmBool, x, func(buf []byte) {
			for i, e := range x {
				if e {
					buf[i] = 1
				}
			}
		}), true, nil

	case []any:
		list := make([]wire.Value, len(x))
		for i, elem := range x {
			ev, err := c.EncodeOutbound(elem)
			if err != nil {
				return wire.Value{}, true, err
			}
			list[i] = ev
		}
		return wire.Value{Kind: wire.ValueList, List: list}, true, nil

	case map[any]any:
		// Map key dynamic type is erased on the wire:
		// a Go `int` key and an `int32` key both fit to the same wire
		// representation, so round-tripping through a by-value map can
		// merge keys that were distinct on the Go side.
		entries := make([]wire.MapEntry, 0, len(x))
		for k, val := range x {
			kv, err := c.EncodeOutbound(k)
			if err != nil {
				return wire.Value{}, true, err
			}
			vv, err := c.EncodeOutbound(val)
			if err != nil {
				return wire.Value{}, true, err
			}
			entries = append(entries, wire.MapEntry{Key: kv, Value: vv})
		}
		return wire.Value{Kind: wire.ValueMap, Map: entries}, true, nil

	case Callback:
		h := c.exports.Export(x, 0)
		return wire.Value{Kind: wire.ValueLambdaHandle, Handle: uint64(h)}, true, nil
	}

	if c.registry != nil && c.exports != nil {
		if desc, err := c.registry.GetOrDescribe(goTypeName(v)); err == nil {
			h := c.exports.Export(v, desc.ID)
			return wire.HandleValue(uint64(h), desc.ID), true, nil
		}
	}

	return wire.Value{}, false, nil
}

// numericArrayLen reports the number of elements in any of the
// supported homogeneous slice types, for the generic shm-or-inline
// decision in encodeNumericArray.
func numericArrayLen(v any) int {
	switch x := v.(type) {
	case []int8:
		return len(x)
	case []int16:
		return len(x)
	case []int32:
		return len(x)
	case []int64:
		return len(x)
	case []float32:
		return len(x)
	case []float64:
		return len(x)
	case []bool:
		return len(x)
	default:
		return 0
	}
}

// encodeNumericArray lays out a homogeneous numeric slice into raw
// big-endian bytes via fill, then routes it through the shared-memory
// path when enabled and large enough, or emits it inline otherwise.
func (c *Coercer) encodeNumericArray(kind wire.ShmElementKind, v any, fill func(buf []byte)) wire.Value {
	n := numericArrayLen(v)
	raw := make([]byte, n*kind.ElementSize())
	fill(raw)

	if c.shmEnabled && int64(len(raw)) >= c.shmThresholdBytes {
		if path, err := c.shmChannel.Write(kind, raw); err == nil {
			return wire.Value{Kind: wire.ValueShmArrayRef, ShmPath: path, ShmKind: kind, ShmLen: n}
		}
		// Fall through to the inline path on a shm write failure rather
		// than silently dropping the argument.
	}

	return wire.Value{Kind: wire.ValueBytes, Bytes: raw}
}
