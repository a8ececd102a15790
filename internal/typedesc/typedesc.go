// Package typedesc implements the Type Registry: TypeDescriptors built
// once per class and cached under a stable id for the life of a session.
package typedesc

// MemberKind distinguishes a TypeDescriptor member.
type MemberKind int

const (
	MemberMethod MemberKind = iota
	MemberField
	MemberConstructor
)

// MethodDescriptor describes one overload of a named method (or a
// constructor, when held in TypeDescriptor.Constructors).
type MethodDescriptor struct {
	Name     string
	Params   []uint64 // declared parameter TypeDescriptor ids, in order
	Variadic bool
	Static   bool
}

// FieldDescriptor describes one field.
type FieldDescriptor struct {
	Name     string
	TypeID   uint64
	ReadOnly bool
	Static   bool
}

// TypeDescriptor is the full reflective description of a class,
// transmitted once per session on first reference and
// cached thereafter under ID.
type TypeDescriptor struct {
	ID   uint64
	Name string

	IsPrimitive bool

	// IsArray marks an array class; ElementTypeID names the element
	// type (itself a TypeDescriptor id). Multidimensional arrays are
	// arrays of arrays, so ElementTypeID may itself refer to an array
	// TypeDescriptor.
	IsArray       bool
	ElementTypeID uint64

	// IsInterface marks a declared type as an interface: a callable or
	// interface-implementation argument is compatible with it.
	IsInterface bool

	// IsContainer marks a declared type as a sequence or mapping that
	// accepts a by-value container conversion from any argument of a
	// compatible shape.
	IsContainer bool

	// Ancestors lists every supertype's id, most-derived first,
	// excluding this type itself. Used for subtype-distance ranking in
	// the method resolver.
	Ancestors []uint64

	Methods      []MethodDescriptor
	Fields       []FieldDescriptor
	Constructors []MethodDescriptor
}

// AncestorDistance returns the index of ancestorID in d.Ancestors plus
// one (the direct supertype is distance 1), or -1 if ancestorID is not
// an ancestor of d.
func (d *TypeDescriptor) AncestorDistance(ancestorID uint64) int {
	for i, a := range d.Ancestors {
		if a == ancestorID {
			return i + 1
		}
	}
	return -1
}

// IsSubtypeOrEqual reports whether d is ancestorID itself or a
// descendant of it.
func (d *TypeDescriptor) IsSubtypeOrEqual(otherID uint64) bool {
	if d.ID == otherID {
		return true
	}
	return d.AncestorDistance(otherID) >= 0
}

// MethodsNamed returns every method overload (including inherited ones,
// which are flattened into Methods at descriptor construction) matching
// name.
func (d *TypeDescriptor) MethodsNamed(name string) []MethodDescriptor {
	var out []MethodDescriptor
	for _, m := range d.Methods {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}
