// Package rest exposes the auth flows over HTTP with gin. Tokens travel in
// http-only cookies; responses use a {success, message, user|data} envelope.
package rest

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/services"
	"github.com/gin-gonic/gin"
)

// AuthService is the subset of services.Service the transport needs.
type AuthService interface {
	Register(ctx context.Context, in services.RegisterInput) (*services.AuthResult, error)
	Login(ctx context.Context, email, password string) (*services.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*services.AuthResult, error)
	Logout(ctx context.Context, refreshToken string)
	LogoutAll(ctx context.Context, userID int64)
	Authenticate(ctx context.Context, accessToken string) (*models.User, error)
	Profile(ctx context.Context, userID int64) (*models.UserSummary, error)
}

// Options configures the HTTP transport.
type Options struct {
	Address            string
	CookieSecure       bool
	CookieDomain       string
	CORSAllowedOrigins []string
}

// Server is the HTTP front of the auth service.
type Server struct {
	opts    Options
	svc     AuthService
	logger  logging.Logger
	engine  *gin.Engine
	now     func() time.Time
	timeout time.Duration
}

func NewServer(opts Options, svc AuthService, l logging.Logger) *Server {
	s := &Server{
		opts:    opts,
		svc:     svc,
		logger:  l.With("module", "http_server"),
		now:     time.Now,
		timeout: 10 * time.Second,
	}
	s.engine = s.routes()
	return s
}

// Handler returns the gin engine, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.opts.Address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP shutdown error", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
