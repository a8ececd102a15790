package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, v Value) Value {
	t.Helper()
	w := NewWriter()
	WriteValue(w, v)

	got, err := ReadValue(NewReader(w.Bytes()))
	require.NoError(t, err)
	return got
}

func TestValue_RoundTrip_Scalars(t *testing.T) {
	cases := []Value{
		Null,
		BoolValue(true),
		{Kind: ValueInt8, Int: -42},
		{Kind: ValueInt16, Int: 1000},
		Int32Value(1 << 20),
		Int64Value(1 << 40),
		{Kind: ValueFloat32, Float: 3.5},
		{Kind: ValueFloat64, Float: 2.71828},
		StringValue("hello, pjrmi"),
		{Kind: ValueBytes, Bytes: []byte{1, 2, 3}},
		HandleValue(99, 7),
	}

	for _, v := range cases {
		require.Equal(t, v, roundTrip(t, v))
	}
}

func TestValue_RoundTrip_List(t *testing.T) {
	v := Value{Kind: ValueList, List: []Value{Int32Value(1), StringValue("a"), Null}}
	require.Equal(t, v, roundTrip(t, v))
}

func TestValue_RoundTrip_EmptyList(t *testing.T) {
	v := Value{Kind: ValueList, List: []Value{}}
	got := roundTrip(t, v)
	require.Equal(t, ValueList, got.Kind)
	require.Empty(t, got.List)
}

func TestValue_RoundTrip_Map(t *testing.T) {
	v := Value{Kind: ValueMap, Map: []MapEntry{
		{Key: StringValue("k1"), Value: Int32Value(1)},
		{Key: StringValue("k2"), Value: Int32Value(2)},
	}}
	require.Equal(t, v, roundTrip(t, v))
}

func TestValue_RoundTrip_NestedList(t *testing.T) {
	v := Value{Kind: ValueList, List: []Value{
		{Kind: ValueList, List: []Value{Int32Value(1), Int32Value(2)}},
		{Kind: ValueList, List: []Value{Int32Value(3)}},
	}}
	require.Equal(t, v, roundTrip(t, v))
}

func TestValue_RoundTrip_ShmArrayRef(t *testing.T) {
	v := Value{Kind: ValueShmArrayRef, ShmPath: "/dev/shm/pjrmi/abc", ShmKind: ShmFloat64, ShmLen: 1024}
	require.Equal(t, v, roundTrip(t, v))
}

func TestValue_ReadValue_UnknownTagErrors(t *testing.T) {
	_, err := ReadValue(NewReader([]byte{0xFE}))
	require.Error(t, err)
}

func TestShmElementKind_ElementSize(t *testing.T) {
	require.Equal(t, 1, ShmBool.ElementSize())
	require.Equal(t, 8, ShmFloat64.ElementSize())
}
