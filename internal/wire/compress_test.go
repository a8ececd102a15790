package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMaybeCompressBytes_SmallStaysUncompressed(t *testing.T) {
	raw := bytes.Repeat([]byte{1}, 16)
	v := MaybeCompressBytes(raw)
	require.Equal(t, ValueBytes, v.Kind)
	require.Equal(t, raw, v.Bytes)
}

func TestMaybeCompressBytes_LargeCompresses(t *testing.T) {
	raw := bytes.Repeat([]byte{0}, CompressThreshold*4)
	v := MaybeCompressBytes(raw)
	require.Equal(t, ValueBytesCompressed, v.Kind)
	require.Less(t, len(v.Bytes), len(raw))

	out, err := DecompressValue(v)
	require.NoError(t, err)
	require.Equal(t, raw, out)
}

func TestDecompressValue_PlainBytesPassThrough(t *testing.T) {
	v := Value{Kind: ValueBytes, Bytes: []byte("abc")}
	out, err := DecompressValue(v)
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), out)
}

func TestValue_RoundTrip_Compressed(t *testing.T) {
	raw := bytes.Repeat([]byte{7}, CompressThreshold*2)
	v := MaybeCompressBytes(raw)

	got := roundTrip(t, v)
	require.Equal(t, v, got)

	out, err := DecompressValue(got)
	require.NoError(t, err)
	require.Equal(t, raw, out)
}
