// internal/middleware/auth_middleware.go
package middleware

import (
	"net/http"
	"strings"

	"prospect-service/internal/pkg/response"
	"prospect-service/internal/service/auth"

	"github.com/gin-gonic/gin"
)

type AuthMiddleware struct {
	authService *auth.AuthService
}

func NewAuthMiddleware(authService *auth.AuthService) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
	}
}

// Auth is the base authentication middleware that validates JWT tokens
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Error(c, http.StatusUnauthorized, "missing authorization token", nil)
			return
		}

		claims, err := m.authService.ValidateToken(c.Request.Context(), token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "invalid or expired token", err)
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("jti", claims.ID)
		c.Set("role", claims.Role)
		if claims.StaffID != nil {
			c.Set("staff_id", *claims.StaffID)
		}
		c.Set("device", claims.Device)

		c.Next()
	}
}

// RequireRole requires one of the listed roles.
// MUST be used after Auth() middleware
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole, exists := c.Get("role")
		if !exists {
			response.Error(c, http.StatusForbidden, "no role found - authentication required", nil)
			return
		}

		role, ok := userRole.(string)
		if !ok {
			response.Error(c, http.StatusInternalServerError, "invalid role format", nil)
			return
		}

		for _, required := range roles {
			if role == required {
				c.Next()
				return
			}
		}

		response.Error(c, http.StatusForbidden, "insufficient permissions", nil, map[string]interface{}{
			"required_roles": roles,
		})
	}
}

// AdminOnly composes Auth + admin role check
func (m *AuthMiddleware) AdminOnly() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		m.Auth(),
		m.RequireRole("admin"),
	}
}

// extractToken extracts Bearer token from Authorization header
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}

	// Fallback for websocket upgrades, which cannot set headers from
	// the browser.
	token := c.Query("token")
	if token != "" {
		return token
	}

	return ""
}

// GetUserID gets the authenticated user id from context
func GetUserID(c *gin.Context) (int64, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		return 0, false
	}

	id, ok := userID.(int64)
	return id, ok
}

// GetJTI gets the token id from context
func GetJTI(c *gin.Context) (string, bool) {
	jti, exists := c.Get("jti")
	if !exists {
		return "", false
	}

	jtiStr, ok := jti.(string)
	return jtiStr, ok
}

// GetStaffID gets the linked staff id from context; admins have none.
func GetStaffID(c *gin.Context) (int64, bool) {
	staffID, exists := c.Get("staff_id")
	if !exists {
		return 0, false
	}

	id, ok := staffID.(int64)
	return id, ok
}

// HasRole checks the authenticated role
func HasRole(c *gin.Context, role string) bool {
	r, exists := c.Get("role")
	if !exists {
		return false
	}

	roleStr, ok := r.(string)
	return ok && roleStr == role
}
