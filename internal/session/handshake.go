package session

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/deshaw/pjrmi-go/internal/logger"
	"github.com/deshaw/pjrmi-go/internal/pjerrors"
	"github.com/deshaw/pjrmi-go/internal/wire"
	"github.com/deshaw/pjrmi-go/pkg/auth"
)

// ServerHandshake waits for a peer's HELLO, validates its protocol
// version and (if cfg.Authenticator is set) its bearer-token identity,
// negotiates session options by lowering the peer's request onto
// cfg.Caps, and replies with HELLO_ACK.
//
// A version mismatch or failed authentication writes an ERROR frame and
// returns the same error the peer observes; the caller is responsible
// for closing conn afterward.
func ServerHandshake(ctx context.Context, conn io.ReadWriteCloser, cfg Config) (*Session, error) {
	f, err := readFrame(ctx, conn, cfg.HandshakeTimeout)
	if err != nil {
		return nil, fmt.Errorf("session: reading HELLO: %w", err)
	}
	if f.Kind != wire.KindHello {
		return nil, refuse(conn, f.RequestID,
			pjerrors.New(pjerrors.CodeProtocolError, "session: expected HELLO, got %s", f.Kind.String()))
	}

	hello, err := wire.DecodeHello(f.Payload)
	if err != nil {
		return nil, refuse(conn, f.RequestID,
			pjerrors.New(pjerrors.CodeProtocolError, "session: malformed HELLO: %v", err))
	}

	if hello.ProtocolVersion != cfg.protocolVersion() {
		return nil, refuse(conn, f.RequestID, pjerrors.VersionMismatch(cfg.protocolVersion(), hello.ProtocolVersion))
	}

	var identity *auth.Identity
	if cfg.Authenticator != nil {
		result, err := cfg.Authenticator.Authenticate(ctx, []byte(hello.PeerIdentity))
		if err != nil {
			return nil, refuse(conn, f.RequestID, pjerrors.AuthFailed(err.Error()))
		}
		if !result.Authenticated {
			return nil, refuse(conn, f.RequestID, pjerrors.AuthFailed("provider declined the presented identity"))
		}
		identity = &result.Identity
	}

	negotiated := hello.Options.Lower(cfg.Caps)
	if cfg.AllowList != nil {
		negotiated.AllowListEnabled = true
	}

	sessionID := uuid.New().String()
	ack := wire.HelloAck{ProtocolVersion: cfg.protocolVersion(), SessionID: sessionID, Options: negotiated}
	if err := wire.WriteFrame(conn, wire.Frame{Kind: wire.KindHelloAck, RequestID: f.RequestID, Payload: wire.EncodeHelloAck(ack)}); err != nil {
		return nil, fmt.Errorf("session: writing HELLO_ACK: %w", err)
	}

	logger.Info("session: handshake accepted",
		logger.SessionID(sessionID), logger.ProtocolVersion(int(hello.ProtocolVersion)))

	return &Session{
		ID:              sessionID,
		ProtocolVersion: ack.ProtocolVersion,
		Options:         negotiated,
		Identity:        identity,
		AllowList:       cfg.AllowList,
	}, nil
}

// ClientHandshake sends a HELLO advertising cfg.Caps and cfg.PeerIdentity,
// then waits for HELLO_ACK (or ERROR) and returns the negotiated Session.
func ClientHandshake(ctx context.Context, conn io.ReadWriteCloser, cfg Config) (*Session, error) {
	hello := wire.Hello{ProtocolVersion: cfg.protocolVersion(), PeerIdentity: cfg.PeerIdentity, Options: cfg.Caps}
	if err := wire.WriteFrame(conn, wire.Frame{Kind: wire.KindHello, Payload: wire.EncodeHello(hello)}); err != nil {
		return nil, fmt.Errorf("session: writing HELLO: %w", err)
	}

	f, err := readFrame(ctx, conn, cfg.HandshakeTimeout)
	if err != nil {
		return nil, fmt.Errorf("session: reading HELLO_ACK: %w", err)
	}

	if f.Kind == wire.KindError {
		return nil, fmt.Errorf("session: handshake rejected by peer: %s", string(f.Payload))
	}
	if f.Kind != wire.KindHelloAck {
		return nil, pjerrors.New(pjerrors.CodeProtocolError, "session: expected HELLO_ACK, got %s", f.Kind.String())
	}

	ack, err := wire.DecodeHelloAck(f.Payload)
	if err != nil {
		return nil, fmt.Errorf("session: malformed HELLO_ACK: %w", err)
	}
	if ack.ProtocolVersion != cfg.protocolVersion() {
		return nil, pjerrors.VersionMismatch(cfg.protocolVersion(), ack.ProtocolVersion)
	}

	return &Session{
		ID:              ack.SessionID,
		ProtocolVersion: ack.ProtocolVersion,
		Options:         ack.Options,
		AllowList:       cfg.AllowList,
	}, nil
}

// refuse writes an ERROR frame carrying cause back to the peer and
// returns cause, so the caller can propagate the same failure it just
// reported.
func refuse(conn io.ReadWriteCloser, requestID uint64, cause *pjerrors.BridgeError) error {
	_ = wire.WriteFrame(conn, wire.Frame{Kind: wire.KindError, RequestID: requestID, Payload: []byte(cause.Error())})
	return cause
}
