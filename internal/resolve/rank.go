// Package resolve implements the Method Resolver: candidate filtering,
// per-argument compatibility ranking, and specificity-ordered overload
// selection.
package resolve

import (
	"github.com/deshaw/pjrmi-go/internal/typedesc"
)

// collectionConversionPenalty is the fixed, high rank assigned to a
// sequence/mapping by-value container conversion.
// It is deliberately worse than any numeric widening or subtype
// distance a real class hierarchy is likely to produce, so an exact or
// structural match always wins over a container coercion.
const collectionConversionPenalty = 1 << 20

// numericWidth ranks every built-in numeric primitive on a single
// widening scale by declared-name. Any argument may widen into a
// parameter of equal or greater width, at a rank cost proportional to
// the distance between them, mirroring the dynamically-typed C side's
// untyped integers and floats auto-fitting whichever declared slot is
// wide enough. A TypeDescriptor's Name is the canonical primitive name;
// this is the resolver's only primitive-classification mechanism, and
// the descriptor carries no separate primitive enum.
var numericWidth = map[string]int{
	"byte": 0, "short": 1, "int": 2, "long": 3, "float": 4, "double": 5,
}

// Arg is everything the resolver needs about one call argument: its
// fitted TypeDescriptor id (already run through the coercer's
// smallest-representable-type fitting for untyped numerics), whether it
// is null, and whether it is a callable/interface-implementation value.
type Arg struct {
	TypeID     uint64
	IsNull     bool
	IsCallable bool
}

// compat is the result of ranking one argument against one declared
// parameter type.
type compat struct {
	rank int
	ok   bool
}

func incompatible() compat        { return compat{ok: false} }
func compatRank(rank int) compat { return compat{rank: rank, ok: true} }

// rankArg implements the compatibility ranking rules for a
// single argument against a single declared parameter type.
func rankArg(registry *typedesc.Registry, arg Arg, paramTypeID uint64) compat {
	if arg.TypeID == paramTypeID {
		return compatRank(0)
	}

	paramDesc := registry.ByID(paramTypeID)

	if arg.IsNull {
		if paramDesc != nil && paramDesc.IsPrimitive {
			return incompatible()
		}
		return compatRank(0)
	}

	argDesc := registry.ByID(arg.TypeID)

	if argDesc != nil && paramDesc != nil {
		if r, ok := numericWidth[argDesc.Name]; ok {
			if pr, ok := numericWidth[paramDesc.Name]; ok && pr >= r {
				return compatRank(pr - r)
			}
		}
	}

	// Boxed/unboxed pair: a descriptor named "boxed:" followed by the
	// other side's name is compatible at rank 1, in either direction;
	// no other marker form (such as a suffix) is recognized. Box naming
	// is the type registry's concern (e.g. "java.lang.Integer" vs
	// "int"); this resolver only recognizes the convention that a boxed
	// descriptor names its unboxed counterpart.
	if argDesc != nil && paramDesc != nil {
		if argDesc.Name == "boxed:"+paramDesc.Name || paramDesc.Name == "boxed:"+argDesc.Name {
			return compatRank(1)
		}
	}

	if argDesc != nil {
		if dist := argDesc.AncestorDistance(paramTypeID); dist >= 0 {
			return compatRank(dist)
		}
	}

	if arg.IsCallable && paramDesc != nil && paramDesc.IsInterface {
		return compatRank(1)
	}

	if paramDesc != nil && paramDesc.IsContainer {
		return compatRank(collectionConversionPenalty)
	}

	return incompatible()
}
