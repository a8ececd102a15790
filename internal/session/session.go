// Package session implements the Session/Handshake component: protocol version exchange, optional bearer-token
// authentication, allow-list activation, and capability negotiation
// between the initiator's requested wire.SessionOptions and the
// responder's own caps.
package session

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/deshaw/pjrmi-go/internal/wire"
	"github.com/deshaw/pjrmi-go/pkg/auth"
)

// ProtocolVersion is this build's wire protocol version. Bump on any
// wire-format change;
// handshake treats any mismatch as an immediate, fatal refusal.
const ProtocolVersion int32 = 1

// Config configures one side of a handshake.
type Config struct {
	// ProtocolVersion overrides the package's ProtocolVersion constant,
	// for tests exercising a deliberate mismatch. Zero means use the
	// default.
	ProtocolVersion int32

	// Caps are this side's capability ceiling. A responder lowers the
	// initiator's requested wire.SessionOptions onto these; an
	// initiator advertises these directly as its request.
	Caps wire.SessionOptions

	// Authenticator, if set, validates the peer's HELLO PeerIdentity as
	// a bearer token before a responder completes the handshake. Nil
	// disables the check (handshake authorizes on version/capability
	// exchange alone).
	Authenticator *auth.Authenticator

	// AllowList, if set, is attached to the resulting Session and forces
	// the negotiated Options.AllowListEnabled on.
	AllowList *AllowList

	// HandshakeTimeout bounds how long ServerHandshake/ClientHandshake
	// wait for the peer's frame. Zero means no timeout.
	HandshakeTimeout time.Duration

	// PeerIdentity is the bearer token (or other transport-supplied
	// identity) an initiator presents in its HELLO frame.
	PeerIdentity string
}

func (c Config) protocolVersion() int32 {
	if c.ProtocolVersion != 0 {
		return c.ProtocolVersion
	}
	return ProtocolVersion
}

// Session is the negotiated outcome of a completed handshake.
type Session struct {
	ID              string
	ProtocolVersion int32
	Options         wire.SessionOptions
	Identity        *auth.Identity
	AllowList       *AllowList
}

// ClassAllowed reports whether className is reachable under this
// session's allow-list. Always true when no allow-list is active.
func (s *Session) ClassAllowed(className string) bool {
	return s.AllowList.Allows(className)
}

func readFrame(ctx context.Context, conn io.ReadWriteCloser, timeout time.Duration) (wire.Frame, error) {
	type result struct {
		f   wire.Frame
		err error
	}
	done := make(chan result, 1)
	go func() {
		f, err := wire.ReadFrame(conn)
		done <- result{f, err}
	}()

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case r := <-done:
		return r.f, r.err
	case <-ctx.Done():
		_ = conn.Close()
		return wire.Frame{}, ctx.Err()
	case <-deadline:
		_ = conn.Close()
		return wire.Frame{}, fmt.Errorf("session: handshake timed out")
	}
}
