package tarchan

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// rsaSigningMethods is the only signing algorithm family the verifier
// accepts. Tokens signed with anything else are rejected outright.
var rsaSigningMethods = []string{"RS256", "RS384", "RS512"}

// TokenVerifier verifies signed bearer tokens against a single configured
// RSA public key. Verification is a pure function of token and key; there
// is no server-side session state.
type TokenVerifier struct {
	key *rsa.PublicKey
}

// NewTokenVerifier creates a verifier for the given public key.
func NewTokenVerifier(key *rsa.PublicKey) *TokenVerifier {
	return &TokenVerifier{key: key}
}

// ParsePublicKey parses PEM-encoded RSA public key material, accepting
// both PKIX ("PUBLIC KEY") and PKCS#1 ("RSA PUBLIC KEY") encodings.
func ParsePublicKey(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("parse public key: %w: no PEM block found", ErrInvalidInput)
	}

	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("parse public key: %w: not an RSA key", ErrInvalidInput)
	}

	return key, nil
}

// Verify checks a bearer token's signature and expiry. The token must be
// signed with an RSA/SHA-2 method by the configured key and must carry an
// expiry claim that lies in the future. Any failure is reported as
// ErrUnauthorized.
func (v *TokenVerifier) Verify(tokenString string) error {
	if tokenString == "" {
		return fmt.Errorf("verify token: missing token: %w", ErrUnauthorized)
	}

	token, err := jwt.Parse(
		tokenString,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return v.key, nil
		},
		jwt.WithValidMethods(rsaSigningMethods),
		jwt.WithExpirationRequired(),
	)

	switch {
	case err != nil:
		if errors.Is(err, jwt.ErrTokenExpired) {
			return fmt.Errorf("verify token: expired: %w", ErrUnauthorized)
		}
		return fmt.Errorf("verify token: %v: %w", err, ErrUnauthorized)
	case !token.Valid:
		return fmt.Errorf("verify token: invalid: %w", ErrUnauthorized)
	}

	return nil
}
