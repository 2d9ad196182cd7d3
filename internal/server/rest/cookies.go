package rest

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
	"github.com/gin-gonic/gin"
)

func (s *Server) setCookie(c *gin.Context, name, value string, expires time.Time) {
	maxAge := int(expires.Sub(s.now()).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(name, value, maxAge, "/", s.opts.CookieDomain, s.opts.CookieSecure, true)
}

func (s *Server) setTokenCookies(c *gin.Context, pair models.TokenPair) {
	s.setCookie(c, common.AccessTokenCookieName, pair.AccessToken, pair.AccessExpiresAt)
	s.setCookie(c, common.RefreshTokenCookieName, pair.RefreshToken, pair.RefreshExpiresAt)
}

func (s *Server) clearTokenCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(common.AccessTokenCookieName, "", -1, "/", s.opts.CookieDomain, s.opts.CookieSecure, true)
	c.SetCookie(common.RefreshTokenCookieName, "", -1, "/", s.opts.CookieDomain, s.opts.CookieSecure, true)
}
