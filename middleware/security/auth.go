package security

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ChatLink/tools/errs"
	sec "ChatLink/tools/security"
)

// Context keys the REST handlers read after the middleware ran.
const (
	CtxUserID = "userId"
	CtxEmail  = "email"
	CtxRole   = "role"
)

// Middleware verifies the bearer token and stores the identity claims in
// the gin context. REST-side counterpart of the websocket handshake check.
func Middleware(secret []byte) gin.HandlerFunc {
	opts := sec.DefaultOptions(secret)
	return func(c *gin.Context) {
		token := sec.BearerToken(c.GetHeader("Authorization"))
		ident, err := sec.Verify(opts, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.AsCodeError(err))
			return
		}
		c.Set(CtxUserID, ident.UserID)
		c.Set(CtxEmail, ident.Email)
		c.Set(CtxRole, ident.Role)
		c.Next()
	}
}

// UserID reads the authenticated user id set by Middleware.
func UserID(c *gin.Context) string {
	return c.GetString(CtxUserID)
}
