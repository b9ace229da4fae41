package common

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRefreshTokenExpired_IsTokenExpired(t *testing.T) {
	assert.ErrorIs(t, ErrRefreshTokenExpired, ErrTokenExpired)
	assert.NotErrorIs(t, ErrTokenExpired, ErrRefreshTokenExpired)
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"unknown", errors.New("boom"), "internal"},
		{"not found", ErrTokenNotFound, "token_not_found"},
		{"expired refresh", ErrRefreshTokenExpired, "expired"},
		{"invalid wraps malformed", fmt.Errorf("%w: %w", ErrInvalidToken, ErrMalformedToken), "malformed"},
		{"invalid wraps signature", fmt.Errorf("%w: %w", ErrInvalidToken, ErrInvalidSignature), "invalid_signature"},
		{"bare invalid", ErrInvalidToken, "invalid_token"},
		{"store timeout", fmt.Errorf("%w: %w", ErrStoreUnavailable, context.DeadlineExceeded), "store_unavailable"},
		{"duplicate", fmt.Errorf("db error: %w", ErrDuplicateToken), "duplicate_token"},
		{"provider", fmt.Errorf("%w: exchange: 401", ErrIdentityProvider), "identity_provider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorKind(tt.err))
		})
	}
}
