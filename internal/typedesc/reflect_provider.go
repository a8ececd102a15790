package typedesc

import (
	"fmt"
	"reflect"
	"sync"
)

// GoReflectionProvider builds TypeDescriptors by reflecting over
// registered Go values, the way net/rpc's Server.Register walks a
// value's method set. It is the ReflectionProvider used when this
// process is the S side and the exposed objects are plain Go values.
type GoReflectionProvider struct {
	typeIDs *Registry

	mu        sync.Mutex
	byName    map[string]reflect.Type
	primitive map[string]bool
}

// NewGoReflectionProvider returns a provider that resolves class names
// registered with Register. typeIDs is the same Registry the provider
// will be installed into, needed to resolve parameter/field types to
// ids recursively.
func NewGoReflectionProvider(typeIDs *Registry) *GoReflectionProvider {
	return &GoReflectionProvider{
		typeIDs: typeIDs,
		byName:  make(map[string]reflect.Type),
		primitive: map[string]bool{
			"bool": true, "int8": true, "int16": true, "int32": true, "int64": true,
			"float32": true, "float64": true, "string": true,
		},
	}
}

// Register associates name with the Go type of sample, so DescribeClass
// can later resolve it. sample may be a nil pointer of the target type,
// e.g. Register("com.example.Widget", (*Widget)(nil)).
func (p *GoReflectionProvider) Register(name string, sample any) {
	t := reflect.TypeOf(sample)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byName[name] = t
}

// DescribeClass implements ReflectionProvider.
func (p *GoReflectionProvider) DescribeClass(name string) (*TypeDescriptor, error) {
	p.mu.Lock()
	t, ok := p.byName[name]
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("typedesc: class %q was never registered", name)
	}

	desc := &TypeDescriptor{
		Name:        name,
		IsPrimitive: p.primitive[t.Kind().String()],
	}

	if t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		desc.IsArray = true
		elemDesc, err := p.describeGoType(t.Elem())
		if err != nil {
			return nil, err
		}
		desc.ElementTypeID = elemDesc.ID
		return desc, nil
	}

	if t.Kind() == reflect.Struct {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			fieldDesc, err := p.describeGoType(f.Type)
			if err != nil {
				return nil, err
			}
			desc.Fields = append(desc.Fields, FieldDescriptor{Name: f.Name, TypeID: fieldDesc.ID})
		}
	}

	// Methods are reflected off a pointer receiver so both value- and
	// pointer-receiver methods are visible, matching how a Go object is
	// actually exported (always behind a pointer, per the handle
	// table's identity requirement).
	ptrType := reflect.PointerTo(t)
	for i := 0; i < ptrType.NumMethod(); i++ {
		m := ptrType.Method(i)
		if !m.IsExported() {
			continue
		}
		md := MethodDescriptor{Name: m.Name}
		// Skip the receiver (argument 0) when walking the method's
		// Go signature. The trailing variadic parameter's Go type is a
		// slice (e.g. []int32 for `...int32`); the resolver repeats
		// this last Params entry per extra argument (resolve.go
		// paramTypeAt), so it must name the element type, not the
		// slice type itself.
		for a := 1; a < m.Type.NumIn(); a++ {
			paramType := m.Type.In(a)
			if m.Type.IsVariadic() && a == m.Type.NumIn()-1 {
				paramType = paramType.Elem()
			}
			paramDesc, err := p.describeGoType(paramType)
			if err != nil {
				return nil, err
			}
			md.Params = append(md.Params, paramDesc.ID)
		}
		md.Variadic = m.Type.IsVariadic()
		desc.Methods = append(desc.Methods, md)
	}

	return desc, nil
}

// describeGoType resolves a reflect.Type to a TypeDescriptor, reusing
// the class name derived from the type's own package path so repeated
// references to the same Go type share one id.
func (p *GoReflectionProvider) describeGoType(t reflect.Type) (*TypeDescriptor, error) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	name := goTypeClassName(t)

	p.mu.Lock()
	if _, ok := p.byName[name]; !ok {
		p.byName[name] = t
	}
	p.mu.Unlock()

	return p.typeIDs.GetOrDescribe(name)
}

func goTypeClassName(t reflect.Type) string {
	if t.PkgPath() == "" {
		if name, ok := primitiveWireName(t.Kind()); ok {
			return name
		}
		return t.Kind().String()
	}
	return t.PkgPath() + "." + t.Name()
}

// primitiveWireName maps a Go kind to the primitive name the resolver
// expects, so a Go-native method's
// parameters resolve against remote primitive arguments the same way
// regardless of which side is implemented in Go.
func primitiveWireName(k reflect.Kind) (string, bool) {
	switch k {
	case reflect.Bool:
		return PrimitiveBoolean, true
	case reflect.Int8:
		return PrimitiveByte, true
	case reflect.Int16:
		return PrimitiveShort, true
	case reflect.Int32:
		return PrimitiveInt, true
	case reflect.Int64:
		return PrimitiveLong, true
	case reflect.Float32:
		return PrimitiveFloat, true
	case reflect.Float64:
		return PrimitiveDouble, true
	case reflect.String:
		return PrimitiveString, true
	default:
		return "", false
	}
}
