package coerce

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deshaw/pjrmi-go/internal/handle"
	"github.com/deshaw/pjrmi-go/internal/shm"
	"github.com/deshaw/pjrmi-go/internal/typedesc"
	"github.com/deshaw/pjrmi-go/internal/wire"
)

func newTestCoercer(t *testing.T, shmThreshold int64) (*Coercer, *handle.LocalExports) {
	t.Helper()
	exports := handle.NewLocalExports()
	registry := typedesc.NewRegistry(nil)
	channel := shm.New(t.TempDir())
	c := New(Options{
		Exports:           exports,
		Registry:          registry,
		ShmChannel:        channel,
		ShmThresholdBytes: shmThreshold,
	})
	return c, exports
}

func TestEncodeOutbound_TypedScalarsHonorExplicitPrecision(t *testing.T) {
	c, _ := newTestCoercer(t, 1<<20)

	v, err := c.EncodeOutbound(int32(5))
	require.NoError(t, err)
	assert.Equal(t, wire.ValueInt32, v.Kind)

	v, err = c.EncodeOutbound(float32(1.5))
	require.NoError(t, err)
	assert.Equal(t, wire.ValueFloat32, v.Kind)
}

func TestEncodeOutbound_UntypedIntFitsSmallestWidth(t *testing.T) {
	c, _ := newTestCoercer(t, 1<<20)

	cases := []struct {
		in   int
		want wire.ValueKind
	}{
		{5, wire.ValueInt8},
		{127, wire.ValueInt8},
		{128, wire.ValueInt16},
		{32767, wire.ValueInt16},
		{32768, wire.ValueInt32},
		{1<<31 - 1, wire.ValueInt32},
		{1 << 31, wire.ValueInt64},
		{-129, wire.ValueInt16},
	}
	for _, tc := range cases {
		v, err := c.EncodeOutbound(tc.in)
		require.NoError(t, err)
		assert.Equalf(t, tc.want, v.Kind, "input %d", tc.in)
		assert.Equal(t, int64(tc.in), v.Int)
	}
}

func TestEncodeOutbound_NilIsNull(t *testing.T) {
	c, _ := newTestCoercer(t, 1<<20)
	v, err := c.EncodeOutbound(nil)
	require.NoError(t, err)
	assert.Equal(t, wire.ValueNull, v.Kind)
}

func TestEncodeOutbound_SmallArrayStaysInline(t *testing.T) {
	c, _ := newTestCoercer(t, 1<<20)
	v, err := c.EncodeOutbound([]int32{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, wire.ValueBytes, v.Kind)
	assert.Len(t, v.Bytes, 12)
}

func TestEncodeOutbound_LargeArrayUsesSharedMemory(t *testing.T) {
	c, _ := newTestCoercer(t, 16) // tiny threshold forces the shm path
	v, err := c.EncodeOutbound([]int32{1, 2, 3, 4, 5})
	require.NoError(t, err)
	require.Equal(t, wire.ValueShmArrayRef, v.Kind)
	assert.Equal(t, wire.ShmInt32, v.ShmKind)
	assert.Equal(t, 5, v.ShmLen)
	assert.FileExists(t, v.ShmPath)
}

func TestEncodeDecodeOutbound_ShmArrayRoundTrips(t *testing.T) {
	c, _ := newTestCoercer(t, 16)
	original := []float64{1.5, -2.25, 3.125, 0}
	v, err := c.EncodeOutbound(original)
	require.NoError(t, err)
	require.Equal(t, wire.ValueShmArrayRef, v.Kind)

	got, err := c.DecodeInbound(v)
	require.NoError(t, err)
	assert.Equal(t, original, got)
}

func TestEncodeOutbound_SequenceRecurses(t *testing.T) {
	c, _ := newTestCoercer(t, 1<<20)
	v, err := c.EncodeOutbound([]any{1, "two", 3.0})
	require.NoError(t, err)
	require.Equal(t, wire.ValueList, v.Kind)
	require.Len(t, v.List, 3)
	assert.Equal(t, wire.ValueInt8, v.List[0].Kind)
	assert.Equal(t, wire.ValueString, v.List[1].Kind)
	assert.Equal(t, wire.ValueFloat64, v.List[2].Kind)
}

func TestEncodeOutbound_CallbackGetsLambdaHandle(t *testing.T) {
	c, exports := newTestCoercer(t, 1<<20)
	called := false
	cb := Callback(func(args []wire.Value) (wire.Value, error) {
		called = true
		return wire.Null, nil
	})

	v, err := c.EncodeOutbound(cb)
	require.NoError(t, err)
	assert.Equal(t, wire.ValueLambdaHandle, v.Kind)
	assert.Equal(t, int64(1), exports.RefCount(handle.Handle(v.Handle)))
	_ = called
}

func TestEncodeOutbound_FormatterHookTakesPrecedenceOverDefaultRules(t *testing.T) {
	c, _ := newTestCoercer(t, 1<<20)
	type celsius float64
	c.RegisterFormatter(goTypeName(celsius(0)), func(v any) (wire.Value, bool, error) {
		return wire.StringValue("custom"), true, nil
	})

	v, err := c.EncodeOutbound(celsius(100))
	require.NoError(t, err)
	assert.Equal(t, wire.ValueString, v.Kind)
	assert.Equal(t, "custom", v.Str)
}

func TestEncodeOutbound_RemoteConverterIsLastResort(t *testing.T) {
	c, _ := newTestCoercer(t, 1<<20)
	c.exports = nil // disable the export-as-handle default rule to force the fallback
	c.SetRemoteConverter(func(v any) (wire.Value, error) {
		return wire.StringValue("remote-converted"), nil
	})

	type opaque struct{}
	v, err := c.EncodeOutbound(opaque{})
	require.NoError(t, err)
	assert.Equal(t, "remote-converted", v.Str)
}

func TestEncodeOutbound_UnconvertibleWithoutRemoteConverterErrors(t *testing.T) {
	c, _ := newTestCoercer(t, 1<<20)
	c.exports = nil
	c.registry = nil

	type opaque struct{}
	_, err := c.EncodeOutbound(opaque{})
	assert.Error(t, err)
}

func TestDecodeInbound_HandleWithoutShimFactoryErrors(t *testing.T) {
	c, _ := newTestCoercer(t, 1<<20)
	_, err := c.DecodeInbound(wire.HandleValue(1, 2))
	assert.Error(t, err)
}

type stubShims struct {
	obj any
}

func (s stubShims) ShimFor(h handle.Handle, typeID uint64) (any, error) { return s.obj, nil }

func TestDecodeInbound_HandleResolvesThroughShimFactory(t *testing.T) {
	c, _ := newTestCoercer(t, 1<<20)
	c.shims = stubShims{obj: "a-shim"}

	got, err := c.DecodeInbound(wire.HandleValue(7, 9))
	require.NoError(t, err)
	boxed, ok := got.(Boxed)
	require.True(t, ok)
	assert.Equal(t, "a-shim", boxed.Value)
	assert.Equal(t, handle.Handle(7), boxed.OriginHandle)
	assert.True(t, boxed.HasHandle)
}

func TestDecodeInbound_MapPreservesEntries(t *testing.T) {
	c, _ := newTestCoercer(t, 1<<20)
	v := wire.Value{Kind: wire.ValueMap, Map: []wire.MapEntry{
		{Key: wire.StringValue("a"), Value: wire.Int32Value(1)},
	}}
	got, err := c.DecodeInbound(v)
	require.NoError(t, err)
	m, ok := got.(map[any]any)
	require.True(t, ok)
	require.Len(t, m, 1)
}
