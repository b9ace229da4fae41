// Package httpapi exposes the session endpoints (refresh, logout, Kakao
// login, current user) over HTTP using chi.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const shutdownTimeout = 10 * time.Second

// TokenIssuer is implemented by *services.TokenService.
type TokenIssuer interface {
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, accessToken string) error
}

// Accounts is implemented by *services.UserService.
type Accounts interface {
	LoginURL(state string) string
	LoginOrSignup(ctx context.Context, code string) (*services.TokenPair, *models.User, error)
	GetUser(ctx context.Context, subject string) (*models.User, error)
}

// TokenVerifier is implemented by *auth.Signer.
type TokenVerifier interface {
	GetUserIDFromToken(token string) (string, error)
}

type HTTPServer struct {
	address        string
	tokens         TokenIssuer
	accounts       Accounts
	verifier       TokenVerifier
	logger         logging.Logger
	requestTimeout time.Duration
}

func NewHTTPServer(address string, l logging.Logger, tokens TokenIssuer, accounts Accounts, verifier TokenVerifier, requestTimeout time.Duration) *HTTPServer {
	return &HTTPServer{
		address:        address,
		tokens:         tokens,
		accounts:       accounts,
		verifier:       verifier,
		logger:         l.With("module", "http_server"),
		requestTimeout: requestTimeout,
	}
}

// Router builds the route tree. It is exported for tests.
func (s *HTTPServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthz)

	r.Route("/api", func(r chi.Router) {
		r.Post("/token/refresh", s.refresh)
		r.Post("/token/logout", s.logout)
		r.Get("/oauth/kakao/login", s.kakaoLogin)
		r.Get("/oauth/kakao/callback", s.kakaoCallback)

		r.Group(func(r chi.Router) {
			r.Use(s.accessTokenMiddleware)
			r.Get("/token/me", s.me)
		})
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.serve(ctx, listen)
}

func (s *HTTPServer) serve(ctx context.Context, listen net.Listener) error {
	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	stopped := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		stopped <- srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-stopped
}
