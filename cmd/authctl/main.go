package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/authctl"
	"github.com/dmitrijs2005/tokenkeeper/internal/cryptox"
	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/auth"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/config"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/services"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/tokens"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes one authctl invocation and returns the process exit code.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	// Global flags are read by config.LoadConfig; they are declared here only
	// so the command name can be located after them.
	global := flag.NewFlagSet("authctl", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.String("c", "", "path to config file")
	global.String("config", "", "path to config file")
	global.String("d", "", "database DSN")
	global.String("l", "", "log level")
	global.String("s", "", "access token secret")
	global.String("r", "", "refresh token secret")
	global.String("t", "", "access token validity")
	global.String("x", "", "refresh token validity")
	if err := global.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}

	logger := logging.New(stderr, cfg.LogBackend, cfg.LogLevel)
	ctx := context.Background()

	repos, err := repomanager.New(cfg.DatabaseDSN)
	if err != nil {
		fmt.Fprintf(stderr, "db init error: %v\n", err)
		return 1
	}
	defer repos.Close()

	if err := repos.RunMigrations(ctx); err != nil {
		fmt.Fprintf(stderr, "migrations: %v\n", err)
		return 1
	}

	codec := auth.NewCodec([]byte(cfg.AccessTokenSecret), []byte(cfg.RefreshTokenSecret),
		cfg.AccessTokenValidityDuration, cfg.RefreshTokenValidityDuration, time.Now)
	mgr := tokens.NewManager(repos.Users(), repos.RefreshTokens(), codec,
		tokens.WithRotationThreshold(cfg.RotationThreshold),
		tokens.WithLogger(logger))
	svc := services.NewService(repos, mgr, codec, cryptox.NewBcryptHasher(cfg.BcryptCost), logger)

	if err := authctl.New(svc, stdin, stdout).Run(ctx, global.Args()); err != nil {
		if errors.Is(err, authctl.ErrUsage) {
			return 2
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
