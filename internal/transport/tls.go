package transport

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// TLSServerConfig builds a *tls.Config for ListenTLS from certificate and
// key paths (internal/config.TLSConfig). When caPath is non-empty, client
// certificates are required and verified against it, and the verified
// leaf's subject common name becomes the connection's PeerUserName.
func TLSServerConfig(certPath, keyPath, caPath string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("transport: loading server cert: %w", err)
	}

	cfg := &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
	if caPath == "" {
		return cfg, nil
	}

	caPEM, err := os.ReadFile(caPath)
	if err != nil {
		return nil, fmt.Errorf("transport: reading client CA: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("transport: no certificates found in %s", caPath)
	}
	cfg.ClientCAs = pool
	cfg.ClientAuth = tls.RequireAndVerifyClientCert
	return cfg, nil
}

// ListenTLS binds addr and returns a Listener that performs the TLS
// handshake on Accept.
func ListenTLS(addr string, cfg *tls.Config) (Listener, error) {
	ln, err := tls.Listen("tcp", addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("transport: tls listen %s: %w", addr, err)
	}
	return &tcpListener{ln: ln}, nil
}

// DialTLS connects to addr and completes a TLS handshake using cfg.
func DialTLS(addr string, cfg *tls.Config) (Transport, error) {
	conn, err := tls.Dial("tcp", addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("transport: tls dial %s: %w", addr, err)
	}
	return tlsTransportFor(conn), nil
}

// tlsTransport wraps a tcpTransport, overriding PeerUserName with the
// verified client certificate's subject, if any.
type tlsTransport struct {
	*tcpTransport
	conn *tls.Conn
}

func tlsTransportFor(conn *tls.Conn) Transport {
	return &tlsTransport{tcpTransport: &tcpTransport{conn: conn}, conn: conn}
}

// PeerUserName returns the verified client certificate's common name, or
// "" if the peer presented none (anonymous TLS, no client-cert auth
// configured).
func (t *tlsTransport) PeerUserName() string {
	state := t.conn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return ""
	}
	return state.PeerCertificates[0].Subject.CommonName
}
