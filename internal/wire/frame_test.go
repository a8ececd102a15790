package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrame_RoundTrip(t *testing.T) {
	f := Frame{
		Kind:            KindCallMethod,
		RequestID:       42,
		LogicalThreadID: 7,
		Payload:         []byte("hello"),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, f))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, f, got)
}

func TestFrame_EmptyPayload(t *testing.T) {
	f := Frame{Kind: KindPing, RequestID: 1, LogicalThreadID: 1}

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, f))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, KindPing, got.Kind)
	require.Empty(t, got.Payload)
}

func TestFrame_RejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})

	_, err := ReadFrame(&buf)
	require.Error(t, err)
}

func TestFrame_MultipleFramesOnSameStream(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, Frame{Kind: KindCallMethod, RequestID: 1}))
	require.NoError(t, WriteFrame(&buf, Frame{Kind: KindResult, RequestID: 1}))

	first, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, KindCallMethod, first.Kind)

	second, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, KindResult, second.Kind)
}

func TestMessageKind_IsCall(t *testing.T) {
	require.True(t, KindCallMethod.IsCall())
	require.True(t, KindAcquireLock.IsCall())
	require.False(t, KindResult.IsCall())
	require.False(t, KindError.IsCall())
	require.False(t, KindReleaseHandle.IsCall())
}
