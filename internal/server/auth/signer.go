// Package auth signs and verifies HS512 JSON Web Tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinKeySize is the smallest accepted HS512 key, in bytes.
const MinKeySize = 64

var ErrWeakKey = fmt.Errorf("signing key must be at least %d bytes", MinKeySize)

// Claims carried by every token. Subject is empty for anonymous (refresh)
// tokens.
type Claims struct {
	jwt.RegisteredClaims
}

// Signer is immutable after construction and safe for concurrent use.
type Signer struct {
	key    []byte
	method jwt.SigningMethod
	parser *jwt.Parser
	now    func() time.Time
}

type Option func(*Signer)

// WithClock replaces the clock used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) { s.now = now }
}

// NewSigner copies key, so the caller may wipe its slice afterwards.
func NewSigner(key []byte, opts ...Option) (*Signer, error) {
	if len(key) < MinKeySize {
		return nil, ErrWeakKey
	}

	k := make([]byte, len(key))
	copy(k, key)

	s := &Signer{
		key:    k,
		method: jwt.SigningMethodHS512,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)

	return s, nil
}

// IssueAccessToken signs a token for subject that expires at expiresAt.
func (s *Signer) IssueAccessToken(subject string, expiresAt time.Time) (string, error) {
	return s.sign(subject, expiresAt)
}

// IssueAnonymousToken signs a token without a subject.
func (s *Signer) IssueAnonymousToken(expiresAt time.Time) (string, error) {
	return s.sign("", expiresAt)
}

func (s *Signer) sign(subject string, expiresAt time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(s.now()),
			ID:        uuid.NewString(),
		},
	}

	token, err := jwt.NewWithClaims(s.method, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Verify checks the signature and expiry of token.
//
// The signature is verified before the claims, so on common.ErrTokenExpired
// the returned claims are authentic and may still be inspected.
func (s *Signer) Verify(token string) (*Claims, error) {
	claims := &Claims{}

	_, err := s.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	})

	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return claims, fmt.Errorf("%w: %w", common.ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidSignature, err)
	default:
		return nil, fmt.Errorf("%w: %w", common.ErrMalformedToken, err)
	}
}

// GetUserIDFromToken returns the subject of a valid, unexpired access token.
func (s *Signer) GetUserIDFromToken(token string) (string, error) {
	claims, err := s.Verify(token)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", common.ErrInvalidToken
	}
	return claims.Subject, nil
}
