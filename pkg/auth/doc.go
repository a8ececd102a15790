// Package auth provides the bearer-token authentication abstractions used
// during session handshake:
//
//   - AuthProvider: Pluggable authentication mechanism
//   - Authenticator: Chains AuthProviders, tries each in order
//   - AuthResult: Authentication outcome with Identity
//   - Identity: Authenticated identity (username plus free-form attributes)
package auth
