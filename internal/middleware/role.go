package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"contactdesk/internal/pkg/response"
)

// RoleAuthenticated is the role the identity provider puts on signed-in users.
const RoleAuthenticated = "authenticated"

// RequireRole ensures that the authenticated caller has one of the roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		role := c.GetString(ContextRole)
		if role == "" {
			response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Role not found in token")
			c.Abort()
			return
		}

		if !allowed[role] {
			response.Error(c, http.StatusForbidden, "FORBIDDEN", "Access denied: insufficient permissions")
			c.Abort()
			return
		}

		c.Next()
	}
}

// Operators allows signed-in users and rejects anonymous provider tokens.
func Operators() gin.HandlerFunc {
	return RequireRole(RoleAuthenticated, "service_role")
}
