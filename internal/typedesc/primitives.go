package typedesc

// Primitive names the resolver's numeric widening ladder and rankArg's
// boxed/unboxed convention key off. They are
// published at fixed, reserved ids so both sides of a session agree on
// them without a wire round trip, the same way a JVM's eight built-in
// primitive types need no class descriptor exchange.
const (
	PrimitiveByte    = "byte"
	PrimitiveShort   = "short"
	PrimitiveInt     = "int"
	PrimitiveLong    = "long"
	PrimitiveFloat   = "float"
	PrimitiveDouble  = "double"
	PrimitiveBoolean = "boolean"
	PrimitiveString  = "string"
)

var primitiveOrder = []string{
	PrimitiveByte, PrimitiveShort, PrimitiveInt, PrimitiveLong,
	PrimitiveFloat, PrimitiveDouble, PrimitiveBoolean, PrimitiveString,
}

// RegisterPrimitives publishes the built-in primitive TypeDescriptors at
// fixed ids 1..8, in primitiveOrder. It is idempotent: calling it again
// on a registry that already has them re-publishes the same ids.
func RegisterPrimitives(r *Registry) {
	for i, name := range primitiveOrder {
		r.Publish(uint64(i+1), &TypeDescriptor{Name: name, IsPrimitive: true})
	}
}
