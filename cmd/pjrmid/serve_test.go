package main

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deshaw/pjrmi-go/internal/config"
	"github.com/deshaw/pjrmi-go/internal/lockmgr"
	"github.com/deshaw/pjrmi-go/internal/wire"
)

func TestStdioListener_AcceptYieldsSingleConnThenBlocks(t *testing.T) {
	l := newStdioListener()

	conn, err := l.Accept()
	require.NoError(t, err)
	assert.NotNil(t, conn)

	done := make(chan error, 1)
	go func() {
		_, err := l.Accept()
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("second Accept returned before Close")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, l.Close())

	select {
	case err := <-done:
		assert.Equal(t, io.EOF, err)
	case <-time.After(time.Second):
		t.Fatal("second Accept never unblocked after Close")
	}
}

func TestServerListen_RejectsPipeAndUnknownTransport(t *testing.T) {
	for _, transport := range []string{"pipe", "carrier-pigeon"} {
		s := &server{cfg: &config.Config{Server: config.ServerConfig{Transport: transport}}}
		_, err := s.listen()
		assert.Error(t, err, transport)
	}
}

func TestWithGlobalLock_SerializesConcurrentLogicalThreads(t *testing.T) {
	s := &server{
		cfg:        &config.Config{GlobalLock: config.GlobalLockConfig{Name: "pjrmi.global"}},
		globalLock: lockmgr.New(),
	}

	var order []int
	slow := s.withGlobalLock(func(ctx context.Context, f wire.Frame) wire.Frame {
		order = append(order, 1)
		time.Sleep(20 * time.Millisecond)
		order = append(order, 2)
		return wire.Frame{Kind: wire.KindResult, RequestID: f.RequestID}
	})

	done := make(chan struct{})
	go func() {
		slow(context.Background(), wire.Frame{RequestID: 1, LogicalThreadID: 1})
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)

	result := slow(context.Background(), wire.Frame{RequestID: 2, LogicalThreadID: 2})
	<-done

	assert.Equal(t, wire.KindResult, result.Kind)
	require.Len(t, order, 4)
	assert.Equal(t, []int{1, 2, 1, 2}, order)
}
