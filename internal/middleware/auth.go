package middleware

import (
	"errors"
	"net/http"
	"strings"

	"botdeck/backend/internal/util"
	"botdeck/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
)

// TokenVerifier resolves a bearer token to a user id
type TokenVerifier interface {
	VerifyToken(token string) (string, error)
}

// AuthMiddleware creates authentication middleware. The token is read from the
// Authorization header, or from the token query parameter for clients that
// cannot set headers (browser WebSockets).
func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			return
		}

		userID, err := verifier.VerifyToken(token)
		if err != nil {
			switch {
			case errors.Is(err, jwt.ErrTokenExpired):
				util.AbortWithCustomError(c, http.StatusUnauthorized, util.ErrCodeTokenExpired, "Token has expired")
			default:
				util.AbortWithCustomError(c, http.StatusUnauthorized, util.ErrCodeTokenInvalid, "Invalid token")
			}
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if token := c.Query("token"); token != "" {
			return token, true
		}
		util.AbortWithCustomError(c, http.StatusUnauthorized, util.ErrCodeUnauthorized, "Missing authorization header")
		return "", false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		util.AbortWithCustomError(c, http.StatusUnauthorized, util.ErrCodeUnauthorized, "Invalid authorization header format")
		return "", false
	}
	return parts[1], true
}
