package middleware

import (
	"errors"
	"net/http"
	"strings"

	"commerce-backend/services"

	"github.com/gin-gonic/gin"
)

const PrincipalContextKey = "principal"

// AuthRequired rejects requests without a valid Bearer token.
func AuthRequired(jwtService *services.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := principalFromHeader(c, jwtService)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Set(PrincipalContextKey, principal)
		c.Next()
	}
}

// AuthOptional attaches a principal when a valid token is present but lets
// anonymous requests through (guest checkout).
func AuthOptional(jwtService *services.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if principal, err := principalFromHeader(c, jwtService); err == nil {
			c.Set(PrincipalContextKey, principal)
		}
		c.Next()
	}
}

// RequireAdmin must run after AuthRequired.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := GetPrincipal(c)
		if err != nil || !principal.Role.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}

// RequireCatalogManager must run after AuthRequired.
func RequireCatalogManager() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := GetPrincipal(c)
		if err != nil || !principal.Role.CanManageCatalog() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Creator or admin access required"})
			return
		}
		c.Next()
	}
}

// GetPrincipal extracts the authenticated principal from the request context.
func GetPrincipal(c *gin.Context) (*services.Principal, error) {
	if val, ok := c.Get(PrincipalContextKey); ok {
		if principal, ok := val.(*services.Principal); ok {
			return principal, nil
		}
	}
	return nil, errors.New("principal not found in context")
}

func principalFromHeader(c *gin.Context, jwtService *services.JWTService) (*services.Principal, error) {
	header := c.GetHeader("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return nil, errors.New("missing bearer token")
	}
	return jwtService.ParseToken(strings.TrimPrefix(header, "Bearer "))
}
