package delivery

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// AdminMiddleware guards the staff/admin surface. Tokens are HS256 JWTs
// issued by the storefront backend with a role claim; this service only
// validates, it never issues.
func AdminMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token claims"})
			c.Abort()
			return
		}

		role, _ := claims["role"].(string)
		if role != "admin" && role != "staff" {
			c.JSON(http.StatusForbidden, gin.H{"error": "staff role required"})
			c.Abort()
			return
		}

		c.Set("role", role)
		c.Next()
	}
}

// ProxySecretMiddleware authenticates the storefront's data-proxy calls
// with a shared-secret header.
func ProxySecretMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" || c.GetHeader("X-Proxy-Secret") != secret {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid proxy secret"})
			c.Abort()
			return
		}
		c.Next()
	}
}
