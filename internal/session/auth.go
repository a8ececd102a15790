package session

import (
	"bytes"
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/deshaw/pjrmi-go/pkg/auth"
)

// JWTAuthProvider is an auth.AuthProvider that treats a HELLO frame's
// PeerIdentity as a signed bearer token. It verifies the token against a shared HMAC
// secret and, if configured, the token's audience and issuer claims.
type JWTAuthProvider struct {
	secret   []byte
	audience string
	issuer   string
}

// NewJWTAuthProvider returns a provider that verifies tokens signed with
// secret. audience and issuer are optional; an empty value skips that
// claim check.
func NewJWTAuthProvider(secret []byte, audience, issuer string) *JWTAuthProvider {
	return &JWTAuthProvider{secret: secret, audience: audience, issuer: issuer}
}

// Name implements auth.AuthProvider.
func (p *JWTAuthProvider) Name() string { return "jwt" }

// CanHandle implements auth.AuthProvider with a fast structural check: a
// compact JWT is three base64url segments joined by dots.
func (p *JWTAuthProvider) CanHandle(token []byte) bool {
	return bytes.Count(token, []byte(".")) == 2
}

// Authenticate implements auth.AuthProvider, verifying token's signature
// and claims and mapping its subject into an auth.Identity.
func (p *JWTAuthProvider) Authenticate(_ context.Context, token []byte) (*auth.AuthResult, error) {
	var opts []jwt.ParserOption
	if p.audience != "" {
		opts = append(opts, jwt.WithAudience(p.audience))
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(string(token), claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("session: jwt verification failed: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("session: jwt token is not valid")
	}

	subject, _ := claims.GetSubject()
	return &auth.AuthResult{
		Identity: auth.Identity{
			Username:   subject,
			Attributes: map[string]string{"auth_mechanism": "jwt"},
		},
		Authenticated: true,
		Provider:      "jwt",
	}, nil
}
