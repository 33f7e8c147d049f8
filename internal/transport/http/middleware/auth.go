package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gtaroom/GTA-GAME-sub003/internal/apperr"
	"github.com/gtaroom/GTA-GAME-sub003/internal/core/domain"
)

// TokenVerifier turns a bearer token into a principal.
type TokenVerifier interface {
	Verify(raw string) (*domain.Principal, error)
}

// RequireAuth validates the Authorization header and attaches the principal.
func RequireAuth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWithError(c, apperr.Unauthorized("missing authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortWithError(c, apperr.Unauthorized("invalid authorization format: expected 'Bearer <token>'"))
			return
		}

		token := strings.TrimSpace(parts[1])
		if token == "" {
			abortWithError(c, apperr.Unauthorized("missing access token"))
			return
		}

		principal, err := verifier.Verify(token)
		if err != nil {
			_ = c.Error(err)
			abortWithError(c, apperr.Unauthorized("invalid access token"))
			return
		}

		SetPrincipal(c, principal)
		c.Next()
	}
}
