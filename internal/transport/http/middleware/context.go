package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/gtaroom/GTA-GAME-sub003/internal/core/domain"
	appLogger "github.com/gtaroom/GTA-GAME-sub003/internal/infra/logger"
)

const (
	// TraceIDHeader is the HTTP header name for trace ID
	TraceIDHeader = "X-Trace-ID"
	// TraceIDKey is the gin context key for trace ID
	TraceIDKey = "trace_id"
	// PrincipalKey is the gin context key for the authenticated principal
	PrincipalKey = "principal"
)

// EnrichContext assigns a trace id to each request. An active OpenTelemetry
// span wins over the inbound header, which wins over a fresh uuid.
func EnrichContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := ""
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.IsValid() {
			traceID = sc.TraceID().String()
		}
		if traceID == "" {
			traceID = c.GetHeader(TraceIDHeader)
		}
		if traceID == "" {
			traceID = uuid.NewString()
		}

		c.Set(TraceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)

		ctx := context.WithValue(c.Request.Context(), appLogger.TraceIDKey{}, traceID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(c *gin.Context) string {
	if traceID, exists := c.Get(TraceIDKey); exists {
		if id, ok := traceID.(string); ok {
			return id
		}
	}
	return ""
}

// SetPrincipal attaches the authenticated principal to the request.
func SetPrincipal(c *gin.Context, principal *domain.Principal) {
	c.Set(PrincipalKey, principal)
}

// GetPrincipal returns the principal attached by RequireAuth, or nil.
func GetPrincipal(c *gin.Context) *domain.Principal {
	value, exists := c.Get(PrincipalKey)
	if !exists {
		return nil
	}
	principal, _ := value.(*domain.Principal)
	return principal
}
