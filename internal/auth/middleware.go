package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const identityContextKey = "cloudboxIdentity"

// tokenValidator resolves a bearer token into a caller identity.
type tokenValidator interface {
	ValidateAccessToken(token string) (Identity, error)
}

// AuthMiddleware validates bearer tokens and injects the caller identity.
func AuthMiddleware(validator tokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := extractBearerToken(authHeader)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		identity, err := validator.ValidateAccessToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		SetIdentity(c, identity)
		c.Next()
	}
}

// SetIdentity stores the caller identity on the request context.
func SetIdentity(c *gin.Context, identity Identity) {
	c.Set(identityContextKey, identity)
}

// IdentityFromContext returns the caller resolved by AuthMiddleware.
func IdentityFromContext(c *gin.Context) (Identity, error) {
	value, exists := c.Get(identityContextKey)
	if !exists {
		return Identity{}, ErrUnauthenticated
	}
	identity, ok := value.(Identity)
	if !ok || !identity.Valid() {
		return Identity{}, ErrUnauthenticated
	}
	return identity, nil
}

func extractBearerToken(header string) string {
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
