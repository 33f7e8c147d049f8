package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/gtaroom/GTA-GAME-sub003/internal/core/domain"
)

// Authorizer decides whether a principal may proceed.
type Authorizer interface {
	HasPermission(ctx context.Context, principal *domain.Principal, capability string) error
	HasAllPermissions(ctx context.Context, principal *domain.Principal, capabilities ...string) error
	HasAnyPermission(ctx context.Context, principal *domain.Principal, capabilities ...string) error
	HasRole(principal *domain.Principal, allowed ...string) error
}

func gate(check func(c *gin.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := check(c); err != nil {
			abortWithError(c, err)
			return
		}
		c.Next()
	}
}

// RequirePermission allows the request when the principal holds capability.
func RequirePermission(authz Authorizer, capability string) gin.HandlerFunc {
	return gate(func(c *gin.Context) error {
		return authz.HasPermission(c.Request.Context(), GetPrincipal(c), capability)
	})
}

// RequireAllPermissions allows the request when every capability is held.
func RequireAllPermissions(authz Authorizer, capabilities ...string) gin.HandlerFunc {
	return gate(func(c *gin.Context) error {
		return authz.HasAllPermissions(c.Request.Context(), GetPrincipal(c), capabilities...)
	})
}

// RequireAnyPermission allows the request when at least one capability is held.
func RequireAnyPermission(authz Authorizer, capabilities ...string) gin.HandlerFunc {
	return gate(func(c *gin.Context) error {
		return authz.HasAnyPermission(c.Request.Context(), GetPrincipal(c), capabilities...)
	})
}

// RequireRole allows the request when the principal's role is in allowed.
func RequireRole(authz Authorizer, allowed ...string) gin.HandlerFunc {
	return gate(func(c *gin.Context) error {
		return authz.HasRole(GetPrincipal(c), allowed...)
	})
}
