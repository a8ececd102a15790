// Package auth provides the bearer-token authentication abstractions used
// during session handshake.
//
// This package defines the core authentication interfaces and types:
//
//   - AuthProvider interface for pluggable authentication mechanisms
//   - Authenticator that chains multiple AuthProviders
//   - AuthResult representing authentication outcomes
//   - Standard error types for authentication failures
//
// A HELLO frame's PeerIdentity field carries an opaque token; the
// Authenticator tries each registered AuthProvider in turn until one
// accepts it.
package auth

import (
	"context"
	"errors"
)

// AuthProvider defines a pluggable authentication mechanism.
//
// Implementations handle a specific token format (a signed JWT, a shared
// secret, etc.) and are chained together by the Authenticator. When a
// HELLO arrives, the Authenticator iterates through providers in order,
// calling CanHandle to find the appropriate provider, then Authenticate
// to process the token.
//
// Thread safety: implementations must be safe for concurrent use.
type AuthProvider interface {
	// CanHandle returns true if this provider can process the given
	// authentication token. Implementations should perform a fast
	// structural check without fully parsing the token.
	CanHandle(token []byte) bool

	// Authenticate processes an authentication token and returns the result.
	//
	// Returns:
	//   - (*AuthResult, nil) on successful authentication
	//   - (nil, error) on failure
	Authenticate(ctx context.Context, token []byte) (*AuthResult, error)

	// Name returns the provider name for logging and diagnostics.
	// Examples: "jwt", "shared-secret"
	Name() string
}

// AuthResult contains the outcome of a successful authentication.
//
// The Identity field holds the authenticated identity in a protocol-neutral form.
// The Provider field indicates which AuthProvider handled the authentication,
// useful for audit logging and debugging.
type AuthResult struct {
	// Identity is the authenticated identity.
	Identity Identity

	// Authenticated indicates whether authentication succeeded.
	Authenticated bool

	// Provider is the name of the AuthProvider that handled this authentication.
	Provider string
}

// Authenticator chains multiple AuthProvider implementations and tries each in order.
//
// When Authenticate is called, the Authenticator iterates through providers:
//  1. Calls CanHandle(token) on each provider
//  2. Calls Authenticate(ctx, token) on a provider that can handle the token
//  3. Returns the result from that provider, unless it returned
//     ErrUnsupportedMechanism, in which case the next provider is tried
//
// If no provider can handle the token, ErrUnsupportedMechanism is returned.
//
// Thread safety: safe for concurrent use (providers are read-only after construction).
type Authenticator struct {
	providers []AuthProvider
}

// NewAuthenticator creates a new Authenticator with the given providers.
// Providers are tried in order; the first one whose CanHandle returns true
// and whose Authenticate does not return ErrUnsupportedMechanism
// processes the token.
func NewAuthenticator(providers ...AuthProvider) *Authenticator {
	return &Authenticator{providers: providers}
}

// Authenticate processes an authentication token by delegating to the first
// matching provider. A provider that returns ErrUnsupportedMechanism passes
// the token on to the next matching provider.
//
// Returns ErrUnsupportedMechanism if no provider can handle the token.
func (a *Authenticator) Authenticate(ctx context.Context, token []byte) (*AuthResult, error) {
	for _, p := range a.providers {
		if p.CanHandle(token) {
			res, err := p.Authenticate(ctx, token)
			if errors.Is(err, ErrUnsupportedMechanism) {
				continue
			}
			return res, err
		}
	}
	return nil, ErrUnsupportedMechanism
}

// Providers returns a copy of the registered auth providers, or nil when
// the Authenticator is nil or has none. Useful for diagnostics and logging.
func (a *Authenticator) Providers() []AuthProvider {
	if a == nil || len(a.providers) == 0 {
		return nil
	}
	out := make([]AuthProvider, len(a.providers))
	copy(out, a.providers)
	return out
}

// Standard authentication errors.
var (
	// ErrAuthFailed indicates that authentication was attempted but failed
	// (e.g., bad password, expired ticket, invalid signature).
	ErrAuthFailed = errors.New("auth: authentication failed")

	// ErrUnsupportedMechanism indicates that no registered AuthProvider can
	// handle the presented authentication token.
	ErrUnsupportedMechanism = errors.New("auth: unsupported authentication mechanism")

	// ErrInvalidCredentials indicates that the credentials are malformed or
	// cannot be parsed (distinct from wrong credentials).
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
)
