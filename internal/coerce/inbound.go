package coerce

import (
	"encoding/binary"
	"math"

	"github.com/deshaw/pjrmi-go/internal/handle"
	"github.com/deshaw/pjrmi-go/internal/wire"
)

// DecodeInbound converts a received wire.Value into a Go value").
func (c *Coercer) DecodeInbound(v wire.Value) (any, error) {
	switch v.Kind {
	case wire.ValueNull:
		return nil, nil

	case wire.ValueBool:
		return Boxed{Value: v.Bool}, nil
	case wire.ValueInt8:
		return Boxed{Value: int8(v.Int)}, nil
	case wire.ValueInt16:
		return Boxed{Value: int16(v.Int)}, nil
	case wire.ValueInt32:
		return Boxed{Value: int32(v.Int)}, nil
	case wire.ValueInt64:
		return Boxed{Value: v.Int}, nil
	case wire.ValueFloat32:
		return Boxed{Value: float32(v.Float)}, nil
	case wire.ValueFloat64:
		return Boxed{Value: v.Float}, nil
	case wire.ValueString:
		return Boxed{Value: v.Str}, nil

	case wire.ValueBytes:
		return v.Bytes, nil
	case wire.ValueBytesCompressed:
		raw, err := wire.DecompressValue(v)
		if err != nil {
			return nil, err
		}
		return raw, nil

	case wire.ValueHandle:
		if c.shims == nil {
			return nil, coercionFailed(v, "no shim factory configured to resolve an inbound handle")
		}
		obj, err := c.shims.ShimFor(handle.Handle(v.Handle), v.TypeID)
		if err != nil {
			return nil, err
		}
		return Boxed{Value: obj, OriginHandle: handle.Handle(v.Handle), HasHandle: true}, nil

	case wire.ValueLambdaHandle:
		return c.decodeLambda(v), nil

	case wire.ValueList:
		out := make([]any, len(v.List))
		for i, elem := range v.List {
			dv, err := c.DecodeInbound(elem)
			if err != nil {
				return nil, err
			}
			out[i] = dv
		}
		return out, nil

	case wire.ValueMap:
		out := make(map[any]any, len(v.Map))
		for _, entry := range v.Map {
			k, err := c.DecodeInbound(entry.Key)
			if err != nil {
				return nil, err
			}
			val, err := c.DecodeInbound(entry.Value)
			if err != nil {
				return nil, err
			}
			out[k] = val
		}
		return out, nil

	case wire.ValueShmArrayRef:
		return c.decodeShmArray(v)

	default:
		return nil, coercionFailed(v, "unknown wire value kind")
	}
}

// decodeLambda wraps a peer-offered callback handle as a local Callback
// that, when invoked, must be dispatched back across the wire by the
// caller (internal/dispatch owns the actual round trip; coerce only
// produces the handle-carrying placeholder).
func (c *Coercer) decodeLambda(v wire.Value) Callback {
	h := handle.Handle(v.Handle)
	return func(args []wire.Value) (wire.Value, error) {
		return wire.Value{}, coercionFailed(h, "lambda handle invocation must be routed through the dispatch engine, not called directly")
	}
}

// decodeShmArray reads the referenced SHMARRY file and decodes it into a
// native Go slice of the matching element type.
func (c *Coercer) decodeShmArray(v wire.Value) (any, error) {
	if c.shmChannel == nil {
		return nil, coercionFailed(v, "no shared-memory channel configured to resolve an shm-array-ref")
	}
	raw, err := c.shmChannel.Read(v.ShmPath, v.ShmKind)
	if err != nil {
		return nil, err
	}
	return decodeNumericBytes(v.ShmKind, raw, v.ShmLen)
}

func decodeNumericBytes(kind wire.ShmElementKind, raw []byte, n int) (any, error) {
	switch kind {
	case wire.ShmBool:
		out := make([]bool, n)
		for i := range out {
			out[i] = raw[i] != 0
		}
		return out, nil
	case wire.ShmInt8:
		out := make([]int8, n)
		for i := range out {
			out[i] = int8(raw[i])
		}
		return out, nil
	case wire.ShmInt16:
		out := make([]int16, n)
		for i := range out {
			out[i] = int16(binary.BigEndian.Uint16(raw[i*2:]))
		}
		return out, nil
	case wire.ShmInt32:
		out := make([]int32, n)
		for i := range out {
			out[i] = int32(binary.BigEndian.Uint32(raw[i*4:]))
		}
		return out, nil
	case wire.ShmInt64:
		out := make([]int64, n)
		for i := range out {
			out[i] = int64(binary.BigEndian.Uint64(raw[i*8:]))
		}
		return out, nil
	case wire.ShmFloat32:
		out := make([]float32, n)
		for i := range out {
			out[i] = math.Float32frombits(binary.BigEndian.Uint32(raw[i*4:]))
		}
		return out, nil
	case wire.ShmFloat64:
		out := make([]float64, n)
		for i := range out {
			out[i] = math.Float64frombits(binary.BigEndian.Uint64(raw[i*8:]))
		}
		return out, nil
	default:
		return nil, coercionFailed(kind, "unknown shm element kind")
	}
}
