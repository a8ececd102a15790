package coerce

import "github.com/deshaw/pjrmi-go/internal/wire"

// FitInt picks the smallest representable integer wire.Value for an
// untyped integer.
func FitInt(v int64) wire.Value {
	switch {
	case v >= -(1<<7) && v <= (1<<7)-1:
		return wire.Value{Kind: wire.ValueInt8, Int: v}
	case v >= -(1<<15) && v <= (1<<15)-1:
		return wire.Value{Kind: wire.ValueInt16, Int: v}
	case v >= -(1<<31) && v <= (1<<31)-1:
		return wire.Value{Kind: wire.ValueInt32, Int: v}
	default:
		return wire.Value{Kind: wire.ValueInt64, Int: v}
	}
}

// FitFloat picks the wire.Value for an untyped float.
func FitFloat(v float64) wire.Value {
	return wire.Value{Kind: wire.ValueFloat64, Float: v}
}
