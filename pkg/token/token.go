// Package token implements the signed credential codec for the auth gateway.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrEmptySecret marks a missing signing secret.
// It must abort startup, never a single request.
var ErrEmptySecret = errors.New("empty signing secret")

// ErrInvalidToken covers every verification failure:
// malformed input, bad signature and expired tokens.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the payload of a marketplace credential.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Verifier checks a raw credential and returns its claims.
type Verifier interface {
	Verify(raw string) (*Claims, error)
}

// Issuer signs and verifies HS256 credentials with a shared secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	issuer string

	// Now returns the current time. It can be overridden in tests.
	Now func() time.Time
}

// NewIssuer creates an issuer. The secret must be non-empty.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Issuer{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: "vendeuonline",
		Now:    time.Now,
	}, nil
}

// Issue creates a signed credential for a subject and role.
func (i *Issuer) Issue(subject, role string) (string, error) {
	now := i.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			ID:        uuid.NewString(),
		},
		Role: role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of a raw credential.
// Every failure mode is reported as ErrInvalidToken.
func (i *Issuer) Verify(raw string) (*Claims, error) {
	claims := new(Claims)
	tok, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (interface{}, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.Now),
	)
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Assert Issuer implements Verifier.
var _ Verifier = (*Issuer)(nil)
