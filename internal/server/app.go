// Package server wires the tokenkeeper components together and runs them:
// the REST API, the gRPC health endpoint and the expired-token reaper.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/cryptox"
	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/auth"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/config"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/reaper"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/rest"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/services"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/tokens"

	gs "github.com/dmitrijs2005/tokenkeeper/internal/server/grpc"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	repos   repomanager.RepositoryManager
	service *services.Service
	http    *rest.Server
	grpc    *gs.GRPCServer
	reaper  *reaper.Reaper
}

// NewApp opens the credential store named by c.DatabaseDSN and builds every
// component on top of it.
func NewApp(c *config.Config, logger logging.Logger) (*App, error) {
	repos, err := repomanager.New(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	return newApp(c, logger, repos, time.Now), nil
}

func newApp(c *config.Config, logger logging.Logger, repos repomanager.RepositoryManager, now func() time.Time) *App {
	codec := auth.NewCodec(
		[]byte(c.AccessTokenSecret),
		[]byte(c.RefreshTokenSecret),
		c.AccessTokenValidityDuration,
		c.RefreshTokenValidityDuration,
		now,
	)

	mgr := tokens.NewManager(repos.Users(), repos.RefreshTokens(), codec,
		tokens.WithClock(now),
		tokens.WithRotationThreshold(c.RotationThreshold),
		tokens.WithLogger(logger.With("module", "tokens")),
	)

	svc := services.NewService(repos, mgr, codec, cryptox.NewBcryptHasher(c.BcryptCost), logger.With("module", "auth_service"))

	httpServer := rest.NewServer(rest.Options{
		Address:            c.EndpointAddrHTTP,
		CookieSecure:       c.CookieSecure,
		CookieDomain:       c.CookieDomain,
		CORSAllowedOrigins: c.CORSAllowedOrigins,
	}, svc, logger)

	return &App{
		config:  c,
		logger:  logger,
		repos:   repos,
		service: svc,
		http:    httpServer,
		grpc:    gs.NewGRPCServer(c.EndpointAddrGRPC, logger),
		reaper:  reaper.New(svc, c.ReapInterval, logger.With("module", "reaper")),
	}
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

// firstError keeps the failure that brought the app down. Errors reported
// after shutdown has begun are ignored.
type firstError struct {
	mu  sync.Mutex
	err error
}

func (f *firstError) set(ctx context.Context, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err == nil && ctx.Err() == nil {
		f.err = err
	}
}

func (f *firstError) get() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// runComponent runs fn and cancels the whole app when it fails.
func (app *App) runComponent(ctx context.Context, cancelFunc context.CancelFunc, failed *firstError, name string, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		app.logger.Error(ctx, "component failed", "component", name, "error", err)
		failed.set(ctx, fmt.Errorf("%s: %w", name, err))
		cancelFunc()
	}
}

// Run applies migrations, then serves until ctx is cancelled, a signal
// arrives or any component fails. The store is closed on the way out. The
// first component failure is returned; a requested shutdown returns nil.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	defer func() {
		if err := app.repos.Close(); err != nil {
			app.logger.Error(ctx, "db close error", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting app...")

	if err := app.repos.RunMigrations(ctx); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	app.initSignalHandler(ctx, cancelFunc)

	var (
		wg     sync.WaitGroup
		failed firstError
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.runComponent(ctx, cancelFunc, &failed, "http", app.http.Run)
	}()
	go func() {
		defer wg.Done()
		app.runComponent(ctx, cancelFunc, &failed, "grpc", app.grpc.Run)
	}()
	go func() {
		defer wg.Done()
		app.runComponent(ctx, cancelFunc, &failed, "reaper", app.reaper.Run)
	}()

	wg.Wait()

	app.logger.Info(context.Background(), "App stopped")

	return failed.get()
}
