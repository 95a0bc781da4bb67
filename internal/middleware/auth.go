package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// driverIDKey is the gin context key the auth middleware stores the
// authenticated driver ID under.
const driverIDKey = "driverID"

// TokenVerifier verifies a session token and returns the driver ID it
// was issued to.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// DriverAuthMiddleware returns middleware that requires a valid driver
// session token. The token is taken from the Authorization header as a
// Bearer token, or from the "token" query parameter for websocket
// upgrades where custom headers are not available.
func DriverAuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing session token"})
			return
		}

		driverID, err := verifier.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session token"})
			return
		}

		c.Set(driverIDKey, driverID)
		c.Next()
	}
}

// DriverID returns the authenticated driver ID set by
// DriverAuthMiddleware, or "" on unauthenticated requests.
func DriverID(c *gin.Context) string {
	return c.GetString(driverIDKey)
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}
