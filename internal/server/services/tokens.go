// Package services contains server-side business logic: the token lifecycle
// (issue, rotate-on-use refresh, logout) and the Kakao login flow built on it.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/refreshtokens"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Signer is the subset of *auth.Signer the token service relies on.
type Signer interface {
	IssueAccessToken(subject string, expiresAt time.Time) (string, error)
	IssueAnonymousToken(expiresAt time.Time) (string, error)
	Verify(token string) (*auth.Claims, error)
}

// TokenService owns the refresh-token state machine. A refresh record is
// LIVE while present and unexpired, EXPIRED while present past its expiry,
// and REVOKED once removed. Nothing is cached; every call reads the store.
type TokenService struct {
	signer     Signer
	store      refreshtokens.Store
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

type TokenServiceOption func(*TokenService)

// WithClock replaces time.Now. The signer used for verification should share
// the same clock.
func WithClock(now func() time.Time) TokenServiceOption {
	return func(s *TokenService) { s.now = now }
}

func NewTokenService(signer Signer, store refreshtokens.Store, cfg *config.Config, opts ...TokenServiceOption) *TokenService {
	s := &TokenService{
		signer:     signer,
		store:      store,
		accessTTL:  cfg.AccessTokenValidityDuration,
		refreshTTL: cfg.RefreshTokenValidityDuration,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue mints a pair for userID and stores the refresh token as LIVE.
func (s *TokenService) Issue(ctx context.Context, userID string) (*TokenPair, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty subject", common.ErrInvalidToken)
	}

	pair, rec, err := s.newPair(userID)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}
	return pair, nil
}

// Refresh redeems refreshToken and returns a replacement pair. Each refresh
// token can be redeemed once; replays fail with common.ErrTokenNotFound.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	// The stored expiry is authoritative, so a JWT-level expiry is let through
	// to reach the lazy deletion below.
	_, verr := s.signer.Verify(refreshToken)
	jwtExpired := errors.Is(verr, common.ErrTokenExpired)
	if verr != nil && !jwtExpired {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, verr)
	}

	rec, found, err := s.store.FindByToken(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	if !found {
		// A store may purge expired records on its own; an authentic token
		// past its expiry still reports as expired.
		if jwtExpired {
			return nil, common.ErrRefreshTokenExpired
		}
		return nil, common.ErrTokenNotFound
	}

	if rec.Expired(s.now()) {
		if err := s.store.DeleteByToken(ctx, refreshToken); err != nil {
			return nil, fmt.Errorf("delete expired refresh token: %w", err)
		}
		return nil, common.ErrRefreshTokenExpired
	}

	pair, next, err := s.newPair(rec.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.store.Rotate(ctx, refreshToken, next); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrTokenNotFound
		}
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}
	return pair, nil
}

// Logout revokes every refresh token of the access token's subject. The
// access token may be expired but its signature must verify.
func (s *TokenService) Logout(ctx context.Context, accessToken string) error {
	claims, err := s.signer.Verify(accessToken)
	if err != nil && !errors.Is(err, common.ErrTokenExpired) {
		return fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}
	if claims == nil || claims.Subject == "" {
		return fmt.Errorf("%w: no subject", common.ErrInvalidToken)
	}

	if _, err := s.store.DeleteAllByUser(ctx, claims.Subject); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	return nil
}

func (s *TokenService) newPair(userID string) (*TokenPair, *models.RefreshToken, error) {
	now := s.now()
	refreshExpiry := now.Add(s.refreshTTL)

	access, err := s.signer.IssueAccessToken(userID, now.Add(s.accessTTL))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
	refresh, err := s.signer.IssueAnonymousToken(refreshExpiry)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	rec := &models.RefreshToken{
		Token:     refresh,
		UserID:    userID,
		ExpiresAt: refreshExpiry,
		CreatedAt: now,
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, rec, nil
}
