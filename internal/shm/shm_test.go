package shm

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deshaw/pjrmi-go/internal/wire"
)

func newTestChannel(t *testing.T) *Channel {
	t.Helper()
	return New(t.TempDir())
}

func int32sToBytes(vals []int32) []byte {
	buf := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.BigEndian.PutUint32(buf[i*4:], uint32(v))
	}
	return buf
}

func TestChannel_WriteReadRoundTrip(t *testing.T) {
	c := newTestChannel(t)
	raw := int32sToBytes([]int32{1, 2, 3, -4, 1 << 30})

	path, err := c.Write(wire.ShmInt32, raw)
	require.NoError(t, err)
	assert.FileExists(t, path)

	got, err := c.Read(path, wire.ShmInt32)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestChannel_ReadUnlinksFile(t *testing.T) {
	c := newTestChannel(t)
	raw := int32sToBytes([]int32{7})
	path, err := c.Write(wire.ShmInt32, raw)
	require.NoError(t, err)

	_, err = c.Read(path, wire.ShmInt32)
	require.NoError(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "reader must unlink the file after reading")
}

func TestChannel_LargeArrayUsesMmapPathAndStillRoundTrips(t *testing.T) {
	c := newTestChannel(t)
	vals := make([]int32, 300000) // 1.2MB, above largeMmapAt
	for i := range vals {
		vals[i] = int32(i)
	}
	raw := int32sToBytes(vals)

	path, err := c.Write(wire.ShmInt32, raw)
	require.NoError(t, err)

	got, err := c.Read(path, wire.ShmInt32)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestChannel_ElementKindMismatchErrors(t *testing.T) {
	c := newTestChannel(t)
	path, err := c.Write(wire.ShmInt32, int32sToBytes([]int32{1, 2}))
	require.NoError(t, err)

	_, err = c.Read(path, wire.ShmFloat64)
	require.Error(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "reader unlinks even on a kind mismatch")
}

func TestChannel_CorruptMagicErrors(t *testing.T) {
	c := newTestChannel(t)
	path := filepath.Join(c.Directory, "bogus.shm")
	require.NoError(t, os.WriteFile(path, []byte("NOTSHM!\x02\x00\x00\x00\x00"), 0600))

	_, err := c.Read(path, wire.ShmInt32)
	require.Error(t, err)
}

func TestChannel_NonMultipleOfElementSizeErrors(t *testing.T) {
	c := newTestChannel(t)
	_, err := c.Write(wire.ShmInt32, []byte{1, 2, 3})
	require.Error(t, err)
}

func TestThreshold(t *testing.T) {
	assert.False(t, Threshold(wire.ShmInt8, 10, 64*1024))
	assert.True(t, Threshold(wire.ShmFloat64, 8192, 64*1024))
}
