// Package common defines shared constants and sentinel errors used across
// the token service layers. Callers should use errors.Is to match these
// values; most of them are wrapped together with their underlying cause.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// Signer errors.
	ErrMalformedToken   = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrTokenExpired     = errors.New("token expired")

	// Token lifecycle errors.
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenNotFound       = errors.New("refresh token not found")
	ErrRefreshTokenExpired = fmt.Errorf("refresh %w", ErrTokenExpired)

	// Token store errors.
	ErrDuplicateToken   = errors.New("duplicate token")
	ErrStoreUnavailable = errors.New("token store unavailable")

	// Identity provider errors.
	ErrIdentityProvider = errors.New("identity provider error")
)

// kinds is ordered from the most to the least specific label.
var kinds = []struct {
	err  error
	name string
}{
	{ErrStoreUnavailable, "store_unavailable"},
	{ErrIdentityProvider, "identity_provider"},
	{ErrDuplicateToken, "duplicate_token"},
	{ErrTokenNotFound, "token_not_found"},
	{ErrMalformedToken, "malformed"},
	{ErrInvalidSignature, "invalid_signature"},
	{ErrTokenExpired, "expired"},
	{ErrInvalidToken, "invalid_token"},
	{ErrorNotFound, "not_found"},
}

// ErrorKind returns a stable label describing err, suitable for a log
// attribute. Unknown errors are reported as "internal"; nil as "".
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "internal"
}
