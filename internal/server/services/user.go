package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/kakao"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	"golang.org/x/oauth2"
)

// IdentityProvider is implemented by *kakao.Client.
type IdentityProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Profile(ctx context.Context, tok *oauth2.Token) (*kakao.Profile, error)
}

// UserService provisions local users from Kakao logins and starts their
// sessions.
type UserService struct {
	provider IdentityProvider
	users    users.Repository
	tokens   *TokenService
}

func NewUserService(provider IdentityProvider, repo users.Repository, tokens *TokenService) *UserService {
	return &UserService{provider: provider, users: repo, tokens: tokens}
}

// LoginURL returns the provider consent page carrying state.
func (s *UserService) LoginURL(state string) string {
	return s.provider.AuthCodeURL(state)
}

// LoginOrSignup exchanges code, upserts the matching user and issues a
// token pair whose subject is the local user id.
func (s *UserService) LoginOrSignup(ctx context.Context, code string) (*TokenPair, *models.User, error) {
	if code == "" {
		return nil, nil, fmt.Errorf("%w: missing authorization code", common.ErrIdentityProvider)
	}

	tok, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	profile, err := s.provider.Profile(ctx, tok)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.users.UpsertByKakaoID(ctx, &models.User{
		KakaoID:         profile.ID,
		Email:           profile.Email,
		Nickname:        profile.Nickname,
		ProfileImageURL: profile.ProfileImageURL,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("error upserting user: %w", err)
	}

	pair, err := s.tokens.Issue(ctx, strconv.FormatInt(user.ID, 10))
	if err != nil {
		return nil, nil, err
	}
	return pair, user, nil
}

// GetUser resolves the subject of an access token to a stored user.
func (s *UserService) GetUser(ctx context.Context, subject string) (*models.User, error) {
	id, err := strconv.ParseInt(subject, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: subject %q", common.ErrInvalidToken, subject)
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}
	return user, nil
}
