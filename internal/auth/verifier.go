// Package auth verifies access tokens minted by the external identity
// provider. The service never authenticates credentials itself; it only
// consumes a verified subject.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Identity is the resolved caller extracted from a verified token.
type Identity struct {
	Subject string
	Email   string
	Name    string
}

type claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Verifier validates a bearer token and returns the caller's identity.
type Verifier interface {
	Verify(token string) (Identity, error)
}

// JWKSVerifier validates RS256/ES256 tokens against the identity provider's
// published key set. keyfunc caches and refreshes keys on its own.
type JWKSVerifier struct {
	keys     keyfunc.Keyfunc
	issuer   string
	audience string
}

func NewJWKSVerifier(ctx context.Context, jwksURL, issuer, audience string) (*JWKSVerifier, error) {
	keys, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("create jwks client: %w", err)
	}
	return &JWKSVerifier{keys: keys, issuer: issuer, audience: audience}, nil
}

func (v *JWKSVerifier) Verify(token string) (Identity, error) {
	return parseToken(token, v.keys.Keyfunc, []string{"RS256", "ES256"}, v.issuer, v.audience)
}

// StaticVerifier validates HS256 tokens signed with a shared secret. Used in
// development when no JWKS endpoint is configured.
type StaticVerifier struct {
	secret   []byte
	issuer   string
	audience string
}

func NewStaticVerifier(secret []byte, issuer, audience string) *StaticVerifier {
	return &StaticVerifier{secret: secret, issuer: issuer, audience: audience}
}

func (v *StaticVerifier) Verify(token string) (Identity, error) {
	keyFn := func(*jwt.Token) (any, error) { return v.secret, nil }
	return parseToken(token, keyFn, []string{"HS256"}, v.issuer, v.audience)
}

func parseToken(token string, keyFn jwt.Keyfunc, algs []string, issuer, audience string) (Identity, error) {
	options := []jwt.ParserOption{jwt.WithValidMethods(algs)}
	if issuer != "" {
		options = append(options, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		options = append(options, jwt.WithAudience(audience))
	}

	parsed, err := jwt.ParseWithClaims(token, &claims{}, keyFn, options...)
	if err != nil || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}
	tokenClaims, ok := parsed.Claims.(*claims)
	if !ok || tokenClaims.Subject == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{
		Subject: tokenClaims.Subject,
		Email:   tokenClaims.Email,
		Name:    tokenClaims.Name,
	}, nil
}
