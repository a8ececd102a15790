package transport

import (
	"net"
	"sync/atomic"
)

// pipeTransport is the in-process variant. Both ends of a session live in the
// same process, so it is always local and carries no address or
// transport-level identity of its own.
type pipeTransport struct {
	conn   net.Conn
	label  string
	closed atomic.Bool
}

// NewPipePair returns two connected Transports sharing an in-memory,
// synchronous duplex, the way an embedded server wires itself directly to
// a caller in the same process without a real socket.
func NewPipePair() (server Transport, client Transport) {
	a, b := net.Pipe()
	return &pipeTransport{conn: a, label: "pipe:server"}, &pipeTransport{conn: b, label: "pipe:client"}
}

func (p *pipeTransport) Read(buf []byte) (int, error) {
	if p.closed.Load() {
		return 0, ErrClosed
	}
	return p.conn.Read(buf)
}

func (p *pipeTransport) Write(buf []byte) (int, error) {
	if p.closed.Load() {
		return 0, ErrClosed
	}
	return p.conn.Write(buf)
}

func (p *pipeTransport) Close() error {
	p.closed.Store(true)
	return p.conn.Close()
}

func (p *pipeTransport) IsClosed() bool { return p.closed.Load() }

func (p *pipeTransport) PeerAddress() string { return p.label }

func (p *pipeTransport) PeerUserName() string { return "" }

func (p *pipeTransport) IsLocalhost() bool { return true }
