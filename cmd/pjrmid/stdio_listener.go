package main

import (
	"io"
	"sync"

	"github.com/deshaw/pjrmi-go/internal/transport"
)

// stdioListener adapts transport.NewStdioSelf, a single ready-made
// Transport, to the transport.Listener interface so the accept loop can
// treat every configured transport uniformly. Its single connection is
// handed out on the first Accept; every call after that blocks until
// Close, mirroring a listener with no more peers left to give out.
type stdioListener struct {
	once sync.Once
	conn transport.Transport

	closed chan struct{}
}

func newStdioListener() *stdioListener {
	return &stdioListener{conn: transport.NewStdioSelf(), closed: make(chan struct{})}
}

func (l *stdioListener) Accept() (transport.Transport, error) {
	var conn transport.Transport
	l.once.Do(func() { conn = l.conn })
	if conn != nil {
		return conn, nil
	}
	<-l.closed
	return nil, io.EOF
}

func (l *stdioListener) Close() error {
	select {
	case <-l.closed:
	default:
		close(l.closed)
	}
	return l.conn.Close()
}

func (l *stdioListener) Addr() string { return l.conn.PeerAddress() }
