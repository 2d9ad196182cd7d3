package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/tokenkeeper/internal/timex"
)

// parseEnv applies environment overrides. Token lifetimes use the
// "<n>[smhd]" notation; malformed values keep the current setting.
func parseEnv(c *Config) {
	if port := os.Getenv("PORT"); port != "" {
		c.EndpointAddrHTTP = ":" + port
	}
	if addr := os.Getenv("GRPC_ADDR"); addr != "" {
		c.EndpointAddrGRPC = addr
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.DatabaseDSN = dsn
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.AccessTokenSecret = secret
	}
	if secret := os.Getenv("REFRESH_JWT_SECRET"); secret != "" {
		c.RefreshTokenSecret = secret
	}
	if v := os.Getenv("ACCESS_TOKEN_EXPIRY"); v != "" {
		c.AccessTokenValidityDuration = timex.ParseOr(v, c.AccessTokenValidityDuration)
	}
	if v := os.Getenv("REFRESH_TOKEN_EXPIRY"); v != "" {
		c.RefreshTokenValidityDuration = timex.ParseOr(v, c.RefreshTokenValidityDuration)
	}
	if v := os.Getenv("COOKIE_SECURE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.CookieSecure = b
		}
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.CORSAllowedOrigins = splitList(v)
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		c.LogLevel = lvl
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
