package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/flagx"
	"github.com/dmitrijs2005/tokenkeeper/internal/timex"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":3000")
//	-g string   gRPC health bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN, or "memory"
//	-s string   access token HMAC secret
//	-r string   refresh token HMAC secret
//	-t string   access token validity ("15m", "900")
//	-x string   refresh token validity ("7d")
//	-i string   reap interval ("1d")
//	-l string   log level
//
// Duration flags use the "<n>[smhd]" notation; malformed values keep the
// previous setting.
func parseFlags(config *Config) error {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-g", "-d", "-s", "-r", "-t", "-x", "-i", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to serve HTTP on")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "address and port to serve gRPC health on")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.AccessTokenSecret, "s", config.AccessTokenSecret, "access token secret")
	fs.StringVar(&config.RefreshTokenSecret, "r", config.RefreshTokenSecret, "refresh token secret")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	accessValidity := fs.String("t", "", "access token validity, e.g. 15m")
	refreshValidity := fs.String("x", "", "refresh token validity, e.g. 7d")
	reapInterval := fs.String("i", "", "expired token sweep interval, e.g. 1d")

	if err := fs.Parse(args); err != nil {
		return err
	}

	config.AccessTokenValidityDuration = durationFlag(*accessValidity, config.AccessTokenValidityDuration)
	config.RefreshTokenValidityDuration = durationFlag(*refreshValidity, config.RefreshTokenValidityDuration)
	config.ReapInterval = durationFlag(*reapInterval, config.ReapInterval)
	return nil
}

func durationFlag(v string, current time.Duration) time.Duration {
	if v == "" {
		return current
	}
	return timex.ParseOr(v, current)
}
