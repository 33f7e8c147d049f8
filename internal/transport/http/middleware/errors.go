package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gtaroom/GTA-GAME-sub003/internal/apperr"
)

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	TraceID    string `json:"trace_id,omitempty"`
}

func newErrorResponse(c *gin.Context, status int, message string) ErrorResponse {
	return ErrorResponse{
		StatusCode: status,
		Message:    message,
		TraceID:    GetTraceID(c),
	}
}

// abortWithError stops the chain with the status carried by err. Errors
// without a kind are reported as a generic 500.
func abortWithError(c *gin.Context, err error) {
	status := apperr.StatusOf(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		message = "internal server error"
	} else if appErr, ok := apperr.As(err); ok && appErr.Message != "" {
		message = appErr.Message
	}

	c.AbortWithStatusJSON(status, newErrorResponse(c, status, message))
}
