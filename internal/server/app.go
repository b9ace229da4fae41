// Package server initializes and runs the token server: it loads the signing
// key, opens the configured refresh-token store, wires the services and serves
// the session API until shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/httpapi"
	"github.com/dmitrijs2005/gophauth/internal/server/kakao"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	"github.com/dmitrijs2005/gophauth/internal/server/secrets"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/dmitrijs2005/gophauth/internal/shared"
	"github.com/redis/go-redis/v9"
)

// openDB is a seam for tests.
var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

type App struct {
	config  *config.Config
	logger  logging.Logger
	server  *httpapi.HTTPServer
	closers []func() error
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(c.LogBackend, os.Stdout, slog.LevelInfo)
	if err != nil {
		return nil, err
	}

	app := &App{config: c, logger: logger}

	key, err := secrets.SigningKey(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("signing key: %w", err)
	}
	signer, err := auth.NewSigner(key)
	shared.WipeByteArray(key)
	if err != nil {
		return nil, err
	}

	store, userRepo, err := app.initStorage(ctx)
	if err != nil {
		app.close()
		return nil, err
	}

	tokens := services.NewTokenService(signer, store, c)

	// Nil when Kakao is not configured; httpapi then serves /me from the
	// token subject alone and disables the callback.
	var accounts httpapi.Accounts
	if c.KakaoClientID != "" {
		provider := kakao.NewClient(c.KakaoClientID, c.KakaoClientSecret, c.KakaoRedirectURL)
		accounts = services.NewUserService(provider, userRepo, tokens)
	}

	app.server = httpapi.NewHTTPServer(c.EndpointAddrHTTP, logger, tokens, accounts, signer, c.RequestTimeout)
	return app, nil
}

// initStorage opens the refresh-token store named by StoreBackend. Users live
// in Postgres unless the memory backend is selected; with the redis backend
// the database is opened only when Kakao login needs it.
func (app *App) initStorage(ctx context.Context) (refreshtokens.Store, users.Repository, error) {
	c := app.config

	switch c.StoreBackend {
	case config.StoreBackendMemory:
		app.logger.Warn(ctx, "using in-memory storage, sessions are lost on restart")
		return refreshtokens.NewMemoryStore(), users.NewMemoryRepository(), nil

	case config.StoreBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		})
		app.closers = append(app.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, nil, fmt.Errorf("redis init error: %w", err)
		}
		store := refreshtokens.NewRedisStore(client)

		if c.KakaoClientID == "" {
			return store, nil, nil
		}
		rm, db, err := app.initDB(ctx)
		if err != nil {
			return nil, nil, err
		}
		return store, rm.Users(db), nil

	case config.StoreBackendPostgres:
		rm, db, err := app.initDB(ctx)
		if err != nil {
			return nil, nil, err
		}
		return rm.RefreshTokens(db), rm.Users(db), nil
	}

	return nil, nil, fmt.Errorf("unknown store backend %q", c.StoreBackend)
}

func (app *App) initDB(ctx context.Context) (repomanager.RepositoryManager, *sql.DB, error) {
	db, err := openDB(app.config.DatabaseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("db init error: %w", err)
	}
	app.closers = append(app.closers, db.Close)

	if err := db.PingContext(ctx); err != nil {
		return nil, nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}
	return rm, db, nil
}

func (app *App) close() error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		errs = append(errs, app.closers[i]())
	}
	app.closers = nil
	return errors.Join(errs...)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) func() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	done := make(chan struct{})
	go func() {
		select {
		case <-sigs:
			cancelFunc()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

// Run serves until ctx is cancelled or a termination signal arrives, then
// releases storage connections.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	stop := app.initSignalHandler(cancelFunc)
	defer stop()

	app.logger.Info(ctx, "Starting app...", "store", app.config.StoreBackend)

	runErr := app.server.Run(ctx)
	if runErr != nil {
		app.logger.Error(ctx, "server stopped", "error", runErr)
	}

	if err := app.close(); err != nil {
		app.logger.Error(ctx, "closing storage", "error", err)
	}

	app.logger.Info(ctx, "App stopped")
	return runErr
}
