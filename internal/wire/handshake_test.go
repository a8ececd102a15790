package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHello_RoundTrip(t *testing.T) {
	h := Hello{
		ProtocolVersion: 3,
		PeerIdentity:    "alice",
		Options: SessionOptions{
			UseShm:           true,
			NumWorkers:       8,
			AllowListEnabled: false,
			CallbacksEnabled: true,
		},
	}

	got, err := DecodeHello(EncodeHello(h))
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestHelloAck_RoundTrip(t *testing.T) {
	a := HelloAck{
		ProtocolVersion: 3,
		SessionID:       "sess-1",
		Options:         SessionOptions{UseShm: true, NumWorkers: 4, CallbacksEnabled: true},
	}

	got, err := DecodeHelloAck(EncodeHelloAck(a))
	require.NoError(t, err)
	require.Equal(t, a, got)
}

func TestSessionOptions_LowerNeverRaisesCaps(t *testing.T) {
	requested := SessionOptions{UseShm: true, NumWorkers: 16, CallbacksEnabled: true}
	capped := SessionOptions{UseShm: false, NumWorkers: 4, CallbacksEnabled: true}

	lowered := requested.Lower(capped)
	require.False(t, lowered.UseShm)
	require.Equal(t, int32(4), lowered.NumWorkers)
	require.True(t, lowered.CallbacksEnabled)
}

func TestSessionOptions_LowerNeverLowersBelowZeroCap(t *testing.T) {
	requested := SessionOptions{NumWorkers: 2}
	capped := SessionOptions{NumWorkers: 0} // 0 means "no cap" for responder

	lowered := requested.Lower(capped)
	require.Equal(t, int32(2), lowered.NumWorkers)
}
