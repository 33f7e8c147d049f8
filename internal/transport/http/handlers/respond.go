package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gtaroom/GTA-GAME-sub003/internal/apperr"
	"github.com/gtaroom/GTA-GAME-sub003/internal/core/domain"
	"github.com/gtaroom/GTA-GAME-sub003/internal/transport/http/middleware"
)

// NewErrorResponse builds the error envelope with the request's trace id.
func NewErrorResponse(c *gin.Context, status int, message string) ErrorResponse {
	return ErrorResponse{
		StatusCode: status,
		Message:    message,
		TraceID:    middleware.GetTraceID(c),
	}
}

// RespondError maps err to its HTTP status. Errors without an apperr kind are
// recorded on the gin context for the access log and reported as a generic
// 500.
func RespondError(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	status := apperr.StatusOf(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(status, NewErrorResponse(c, status, "internal server error"))
		return
	}

	message := http.StatusText(status)
	if appErr, ok := apperr.As(err); ok && appErr.Message != "" {
		message = appErr.Message
	}
	c.JSON(status, NewErrorResponse(c, status, message))
}

func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Envelope{StatusCode: status, Data: data, Message: message})
}

// bindJSON decodes the body into dst, translating decode failures to 400.
func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is required")
		}
		return apperr.Wrap(err, apperr.KindValidation, "invalid request payload")
	}
	return nil
}

// parsePermissions validates loosely typed JSON permissions. A nil map stays
// nil so partial updates can leave permissions untouched.
func parsePermissions(raw map[string]any) (domain.PermissionSet, error) {
	if raw == nil {
		return nil, nil
	}
	set, err := domain.ParsePermissionSet(raw)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindValidation, err.Error())
	}
	return set, nil
}

// actorID returns the authenticated principal's id or an Unauthorized error.
func actorID(c *gin.Context) (string, error) {
	principal := middleware.GetPrincipal(c)
	if principal == nil || principal.ID == "" {
		return "", apperr.Unauthorized("authentication required")
	}
	return principal.ID, nil
}
