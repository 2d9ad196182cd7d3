package rest

import (
	"net/http"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/gin-gonic/gin"
)

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	User    any    `json:"user,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, envelope{Success: false, Message: msg})
}

// statusFor maps a domain error code to its HTTP status.
func statusFor(code common.Code) int {
	switch code {
	case common.CodeConflict, common.CodeInvalidCredentials, common.CodeInvalidToken, common.CodeExpired,
		common.CodeInvalidInput:
		return http.StatusBadRequest
	case common.CodeForbidden:
		return http.StatusForbidden
	case common.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// failWith writes the response for a service error. Internal causes are
// attached to the gin context for the request log and never sent.
func failWith(c *gin.Context, err error) {
	code := common.CodeOf(err)
	if code == common.CodeInternal {
		_ = c.Error(err)
	}
	fail(c, statusFor(code), common.MessageOf(err))
}
