package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/medusa-player/internal/auth"
)

// OperatorAuth accepts either a device JWT signed with secret or HTTP basic
// auth whose password matches the bcrypt passwordHash.
func OperatorAuth(secret, passwordHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if sub, ok := bearerSubject(c.GetHeader("Authorization"), secret); ok {
			c.Set(operatorKey, sub)
			c.Next()
			return
		}
		if user, pass, ok := c.Request.BasicAuth(); ok && passwordHash != "" && auth.CheckPassword(passwordHash, pass) {
			c.Set(operatorKey, user)
			c.Next()
			return
		}
		log.Warn().Str("path", c.FullPath()).Str("remote", c.ClientIP()).Msg("rejected operator request")
		c.Header("WWW-Authenticate", `Basic realm="medusa-player"`)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": auth.ErrInvalidCredentials.Error()})
	}
}

// GetOperator returns the subject or basic-auth user set by OperatorAuth or
// JWTMiddleware.
func GetOperator(c *gin.Context) (string, bool) {
	v, ok := c.Get(operatorKey)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
