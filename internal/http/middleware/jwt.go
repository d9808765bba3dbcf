package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/medusa-player/internal/auth"
)

const operatorKey = "operator"

// bearerSubject verifies "Authorization: Bearer <token>" and returns the
// token subject.
func bearerSubject(header, secret string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || secret == "" {
		return "", false
	}
	sub, err := auth.ParseJWT(parts[1], secret)
	if err != nil {
		return "", false
	}
	return sub, true
}

// JWTMiddleware checks the bearer token and sets the subject as "operator".
func JWTMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing auth header"})
			return
		}
		sub, ok := bearerSubject(header, secret)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(operatorKey, sub)
		c.Next()
	}
}
