// Package transport implements the byte-stream layer PJRmi's codec runs
// over. A Transport is opaque to everything above it: the
// frame codec only ever sees a bidirectional byte stream, a peer address,
// an authenticated peer user name, and a sticky, observable close.
package transport

import (
	"errors"
	"io"
)

// ErrClosed is returned by Read/Write once Close has been called.
var ErrClosed = errors.New("transport: use of closed connection")

// Transport is a single peer connection. Read/Write behave like
// io.Reader/io.Writer; Close is idempotent and sticky, so a Transport that
// has been closed stays closed and reports IsClosed() == true forever
// after.
type Transport interface {
	io.Reader
	io.Writer
	io.Closer

	// IsClosed reports whether Close has been called, without blocking
	// on any in-flight Read.
	IsClosed() bool

	// PeerAddress is the transport-level address of the remote end
	// ("host:port" for tcp/tls, a synthetic label for pipe/stdio).
	PeerAddress() string

	// PeerUserName is the authenticated identity of the remote end, if
	// the transport itself establishes one (e.g. a TLS client
	// certificate's CN). Empty when the transport carries no identity
	// of its own; session-level bearer-token authentication fills this
	// gap (internal/session).
	PeerUserName() string

	// IsLocalhost reports whether the peer is known to be co-located
	// with this process, gating the shared-memory fast path (§4.7).
	// Always true for pipe and stdio transports; tcp/tls report true
	// only when the peer's IP is a loopback address, so a peer reaching
	// this host through one of its non-loopback addresses is not
	// treated as co-located.
	IsLocalhost() bool
}

// Listener accepts inbound Transport connections.
type Listener interface {
	Accept() (Transport, error)
	Close() error
	Addr() string
}
