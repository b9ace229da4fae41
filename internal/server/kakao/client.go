// Package kakao exchanges Kakao authorization codes and reads the user
// profile behind them.
package kakao

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"golang.org/x/oauth2"
)

const (
	DefaultAuthURL    = "https://kauth.kakao.com/oauth/authorize"
	DefaultTokenURL   = "https://kauth.kakao.com/oauth/token"
	DefaultProfileURL = "https://kapi.kakao.com/v2/user/me"
)

// Profile is the subset of the Kakao account used to provision a user.
type Profile struct {
	ID              string
	Email           string
	Nickname        string
	ProfileImageURL string
}

type userMe struct {
	ID           int64 `json:"id"`
	KakaoAccount struct {
		Email   string `json:"email"`
		Profile struct {
			Nickname        string `json:"nickname"`
			ProfileImageURL string `json:"profile_image_url"`
		} `json:"profile"`
	} `json:"kakao_account"`
	Properties struct {
		Nickname     string `json:"nickname"`
		ProfileImage string `json:"profile_image"`
	} `json:"properties"`
}

type Client struct {
	oauth      *oauth2.Config
	profileURL string
	httpClient *http.Client
}

type Option func(*Client)

// WithEndpoints overrides the Kakao URLs, mainly for tests.
func WithEndpoints(authURL, tokenURL, profileURL string) Option {
	return func(c *Client) {
		c.oauth.Endpoint.AuthURL = authURL
		c.oauth.Endpoint.TokenURL = tokenURL
		c.profileURL = profileURL
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(clientID, clientSecret, redirectURL string, opts ...Option) *Client {
	c := &Client{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:   DefaultAuthURL,
				TokenURL:  DefaultTokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		profileURL: DefaultProfileURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ctx(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

// AuthCodeURL returns the consent page URL the browser is sent to.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// Exchange trades an authorization code for a Kakao access token.
func (c *Client) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := c.oauth.Exchange(c.ctx(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: exchange code: %w", common.ErrIdentityProvider, err)
	}
	return tok, nil
}

// Profile fetches the account behind tok.
func (c *Client) Profile(ctx context.Context, tok *oauth2.Token) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.profileURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.oauth.Client(c.ctx(ctx), tok).Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch profile: %w", common.ErrIdentityProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: fetch profile: status %d: %s", common.ErrIdentityProvider, resp.StatusCode, body)
	}

	var me userMe
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		return nil, fmt.Errorf("%w: decode profile: %w", common.ErrIdentityProvider, err)
	}
	if me.ID == 0 {
		return nil, fmt.Errorf("%w: profile without id", common.ErrIdentityProvider)
	}

	p := &Profile{
		ID:              strconv.FormatInt(me.ID, 10),
		Email:           me.KakaoAccount.Email,
		Nickname:        me.KakaoAccount.Profile.Nickname,
		ProfileImageURL: me.KakaoAccount.Profile.ProfileImageURL,
	}
	if p.Nickname == "" {
		p.Nickname = me.Properties.Nickname
	}
	if p.ProfileImageURL == "" {
		p.ProfileImageURL = me.Properties.ProfileImage
	}
	return p, nil
}
