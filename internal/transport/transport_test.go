package transport

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipePair_RoundTripsAndIsLocalhost(t *testing.T) {
	server, client := NewPipePair()
	defer server.Close()
	defer client.Close()

	assert.True(t, server.IsLocalhost())
	assert.True(t, client.IsLocalhost())
	assert.Empty(t, server.PeerUserName())

	done := make(chan struct{})
	go func() {
		buf := make([]byte, 5)
		n, err := server.Read(buf)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(buf[:n]))
		close(done)
	}()

	n, err := client.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	<-done
}

func TestPipePair_CloseIsStickyAndObservable(t *testing.T) {
	server, client := NewPipePair()
	defer client.Close()

	require.NoError(t, server.Close())
	assert.True(t, server.IsClosed())

	_, err := server.Read(make([]byte, 1))
	assert.ErrorIs(t, err, ErrClosed)

	_, err = server.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestTCPListener_AcceptDialRoundTrip(t *testing.T) {
	ln, err := ListenTCP("127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	serverDone := make(chan Transport, 1)
	go func() {
		conn, err := ln.Accept()
		require.NoError(t, err)
		serverDone <- conn
	}()

	client, err := DialTCP(ln.Addr())
	require.NoError(t, err)
	defer client.Close()

	server := <-serverDone
	defer server.Close()

	assert.True(t, client.IsLocalhost())
	assert.True(t, server.IsLocalhost())
	assert.NotEmpty(t, server.PeerAddress())

	_, err = client.Write([]byte("ping"))
	require.NoError(t, err)

	buf := make([]byte, 4)
	_, err = io.ReadFull(server, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))
}

func TestIsLoopbackAddr(t *testing.T) {
	assert.True(t, isLoopbackAddr("127.0.0.1:1234"))
	assert.True(t, isLoopbackAddr("[::1]:1234"))
	assert.False(t, isLoopbackAddr("93.184.216.34:80"))
	assert.False(t, isLoopbackAddr("not-an-ip"))
}
