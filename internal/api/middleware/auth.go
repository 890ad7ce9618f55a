package middleware

import (
	"net/http"
	"slices"
	"strings"

	"shuttle-backend/pkg/jwt"
	"shuttle-backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware validates the bearer token and stores the caller's id and
// role on the context.
func AuthMiddleware(jwtUtil *jwt.JWTUtil) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.ErrorResponse(c, http.StatusUnauthorized, "Authorization header required", nil)
			c.Abort()
			return
		}

		// Handle both "Bearer token" and just "token" formats
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := jwtUtil.ValidateToken(tokenString)
		if err != nil {
			utils.ErrorResponse(c, http.StatusUnauthorized, "Invalid or expired token", err)
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// RequireRole rejects callers whose role is not in roles. Must run after
// AuthMiddleware.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !slices.Contains(roles, c.GetString("role")) {
			utils.ErrorResponse(c, http.StatusForbidden, "Insufficient permissions", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}
