package proxybridge

import (
	"reflect"

	"github.com/deshaw/pjrmi-go/internal/coerce"
	"github.com/deshaw/pjrmi-go/internal/pjerrors"
	"github.com/deshaw/pjrmi-go/internal/wire"
)

// WrapFunc adapts a Go function into a coerce.Callback so it can be
// exported as a lambda handle and invoked by the peer.
// Arguments arriving over the wire are decoded and converted to fn's
// declared parameter types; fn's return value (and a trailing error, if
// any) are encoded back through the coercer.
func (b *Bridge) WrapFunc(fn any) coerce.Callback {
	rv := reflect.ValueOf(fn)
	rt := rv.Type()

	return func(args []wire.Value) (wire.Value, error) {
		if !rt.IsVariadic() && len(args) != rt.NumIn() {
			return wire.Value{}, pjerrors.New(pjerrors.CodeTypeMismatch,
				"proxybridge: callback expects %d arguments, got %d", rt.NumIn(), len(args))
		}

		in := make([]reflect.Value, len(args))
		for i, a := range args {
			decoded, err := b.coercer.DecodeInbound(a)
			if err != nil {
				return wire.Value{}, err
			}
			want, err := paramTypeAt(rt, i)
			if err != nil {
				return wire.Value{}, err
			}
			cv, err := convertArg(decoded, want)
			if err != nil {
				return wire.Value{}, err
			}
			in[i] = cv
		}

		result, err := unpackResults(rt, rv.Call(in))
		if err != nil {
			return wire.Value{}, err
		}
		return b.coercer.EncodeOutbound(result)
	}
}
