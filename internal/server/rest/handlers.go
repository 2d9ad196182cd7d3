package rest

import (
	"net/http"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/services"
	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	Name     string `json:"name" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// register handles POST /api/v1/auth/register.
func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	res, err := s.svc.Register(c.Request.Context(), services.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		failWith(c, err)
		return
	}

	s.setTokenCookies(c, res.Tokens)
	c.JSON(http.StatusCreated, envelope{Success: true, Message: "user registered successfully", User: res.User})
}

// login handles POST /api/v1/auth/login.
func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	res, err := s.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		failWith(c, err)
		return
	}

	s.setTokenCookies(c, res.Tokens)
	c.JSON(http.StatusOK, envelope{Success: true, Message: "login successful", User: res.User})
}

// refresh handles POST /api/v1/auth/refresh-token. Cookies are cleared on
// every failure.
func (s *Server) refresh(c *gin.Context) {
	token, _ := c.Cookie(common.RefreshTokenCookieName)

	res, err := s.svc.Refresh(c.Request.Context(), token)
	if err != nil {
		s.clearTokenCookies(c)
		failWith(c, err)
		return
	}

	s.setTokenCookies(c, res.Tokens)
	c.JSON(http.StatusOK, envelope{Success: true, Message: "token refreshed successfully", User: res.User})
}

// logout handles POST /api/v1/auth/logout.
func (s *Server) logout(c *gin.Context) {
	token, _ := c.Cookie(common.RefreshTokenCookieName)
	s.svc.Logout(c.Request.Context(), token)

	s.clearTokenCookies(c)
	c.JSON(http.StatusOK, envelope{Success: true, Message: "logout successful"})
}

// logoutAll handles POST /api/v1/auth/logout-all.
func (s *Server) logoutAll(c *gin.Context) {
	if u := currentUser(c); u != nil {
		s.svc.LogoutAll(c.Request.Context(), u.ID)
	}

	s.clearTokenCookies(c)
	c.JSON(http.StatusOK, envelope{Success: true, Message: "logged out from all devices"})
}

// profile handles GET /api/v1/profile.
func (s *Server) profile(c *gin.Context) {
	u := currentUser(c)
	if u == nil {
		fail(c, http.StatusUnauthorized, "access token required")
		return
	}

	p, err := s.svc.Profile(c.Request.Context(), u.ID)
	if err != nil {
		failWith(c, err)
		return
	}

	c.JSON(http.StatusOK, envelope{Success: true, User: p})
}
