package proxybridge

import (
	"reflect"

	"github.com/deshaw/pjrmi-go/internal/coerce"
	"github.com/deshaw/pjrmi-go/internal/pjerrors"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func isErrorType(t reflect.Type) bool { return t.Implements(errorType) }

// invokeReflect calls member on obj via reflection with decoded Go
// arguments, the same way net/rpc's reflection-based invoker dispatches
// a registered method by name.
func invokeReflect(obj any, member string, args []any) (any, error) {
	rv := reflect.ValueOf(obj)
	method := rv.MethodByName(member)
	if !method.IsValid() {
		return nil, pjerrors.NoSuchMethod(rv.Type().String(), member)
	}
	mt := method.Type()

	in := make([]reflect.Value, len(args))
	for i, a := range args {
		want, err := paramTypeAt(mt, i)
		if err != nil {
			return nil, err
		}
		cv, err := convertArg(a, want)
		if err != nil {
			return nil, err
		}
		in[i] = cv
	}

	return unpackResults(mt, method.Call(in))
}

// paramTypeAt returns the declared type a call's i'th argument must
// convert to, expanding a trailing variadic parameter's element type
// for every argument position at or past it.
func paramTypeAt(mt reflect.Type, i int) (reflect.Type, error) {
	switch {
	case mt.IsVariadic() && i >= mt.NumIn()-1:
		return mt.In(mt.NumIn() - 1).Elem(), nil
	case i < mt.NumIn():
		return mt.In(i), nil
	default:
		return nil, pjerrors.New(pjerrors.CodeTypeMismatch, "proxybridge: too many arguments at position %d", i)
	}
}

// convertArg converts a decoded inbound value (possibly a coerce.Boxed)
// into a reflect.Value assignable to want.
func convertArg(v any, want reflect.Type) (reflect.Value, error) {
	if b, ok := v.(coerce.Boxed); ok {
		v = b.Value
	}
	if v == nil {
		return reflect.Zero(want), nil
	}

	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(want) {
		return rv, nil
	}
	if rv.Type().ConvertibleTo(want) && isNumericKind(rv.Kind()) && isNumericKind(want.Kind()) {
		return rv.Convert(want), nil
	}
	return reflect.Value{}, pjerrors.New(pjerrors.CodeCoercionFailed,
		"proxybridge: cannot use value of type %s as parameter of type %s", rv.Type(), want)
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// unpackResults turns a reflect.Call's return values into a single Go
// value the coercer can encode: nothing for a void method, the one
// value for a single-return method, or a trailing error short-circuited
// into a Go error and every remaining value collected into a []any.
func unpackResults(mt reflect.Type, out []reflect.Value) (any, error) {
	if len(out) == 0 {
		return nil, nil
	}

	last := len(out) - 1
	if isErrorType(mt.Out(last)) {
		if errVal, _ := out[last].Interface().(error); errVal != nil {
			return nil, pjerrors.RemoteException(errVal.Error(), nil)
		}
		out = out[:last]
	}

	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return out[0].Interface(), nil
	default:
		vals := make([]any, len(out))
		for i, o := range out {
			vals[i] = o.Interface()
		}
		return vals, nil
	}
}
