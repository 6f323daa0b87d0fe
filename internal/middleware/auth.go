package middleware

import (
	"errors"
	"net/http"
	"strings"

	"chatdesk/internal/auth"
	"chatdesk/internal/dto"

	"github.com/gin-gonic/gin"
)

// ===========================================================================
// Auth Middleware
// Turns the bearer credential into a Principal. Tokens are issued
// elsewhere; this service only validates them
// ===========================================================================

// ContextKeyPrincipal gin context key of the validated principal
const ContextKeyPrincipal = "principal"

// Auth validates the bearer token from the Authorization header, falling
// back to the access_token cookie used by the widget
func Auth(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenString string

		if header := c.GetHeader("Authorization"); header != "" {
			parts := strings.SplitN(header, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
				tokenString = strings.TrimSpace(parts[1])
			}
		}
		if tokenString == "" {
			if cookie, err := c.Cookie("access_token"); err == nil {
				tokenString = cookie
			}
		}

		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.Error("UNAUTHORIZED", "Authentication required"))
			return
		}

		principal, err := jwtService.ValidateToken(tokenString)
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, dto.Error("TOKEN_EXPIRED", "Token has expired"))
			} else {
				c.AbortWithStatusJSON(http.StatusUnauthorized, dto.Error("INVALID_TOKEN", "Invalid token"))
			}
			return
		}

		c.Set(ContextKeyPrincipal, principal)
		c.Next()
	}
}

// RequireRole allows only the listed roles
func RequireRole(roles ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := GetPrincipal(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, dto.Error("FORBIDDEN", "Access denied"))
			return
		}

		for _, r := range roles {
			if principal.Role == r {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, dto.Error("FORBIDDEN", "Insufficient permissions"))
	}
}

// RequireStaff agents and admins
func RequireStaff() gin.HandlerFunc {
	return RequireRole(auth.RoleAgent, auth.RoleAdmin)
}

// RequireAdmin admins only
func RequireAdmin() gin.HandlerFunc {
	return RequireRole(auth.RoleAdmin)
}

// GetPrincipal principal set by Auth
func GetPrincipal(c *gin.Context) (*auth.Principal, bool) {
	v, exists := c.Get(ContextKeyPrincipal)
	if !exists {
		return nil, false
	}
	p, ok := v.(*auth.Principal)
	return p, ok
}
