// internal/pkg/jwt/claims.go
package jwt

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the JWT claims
type Claims struct {
	UserID         int64  `json:"user_id"`
	Role           string `json:"role,omitempty"`
	StaffID        *int64 `json:"staff_id,omitempty"`
	Device         string `json:"device,omitempty"`
	SessionPurpose string `json:"session_purpose"` // access, refresh, password_reset
	jwt.RegisteredClaims
}

// IsAdmin checks if the user carries the admin role
func (c *Claims) IsAdmin() bool {
	return c.Role == "admin"
}

// VerifyAudience checks if the expected audience is listed in the claims.
func (c *Claims) VerifyAudience(audience string, required bool) bool {
	if len(c.Audience) == 0 {
		return !required
	}

	for _, aud := range c.Audience {
		if aud == audience {
			return true
		}
	}

	return false
}
