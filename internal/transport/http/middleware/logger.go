package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appLogger "github.com/gtaroom/GTA-GAME-sub003/internal/infra/logger"
)

// Logger emits one access log line per request with correlation ids, the
// acting principal and a masked client IP.
func Logger(log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", appLogger.MaskIP(c.ClientIP())),
		}

		if principal := GetPrincipal(c); principal != nil {
			fields = append(fields,
				zap.String("principal_id", principal.ID),
				zap.String("principal_role", principal.Role),
			)
		}

		if ua := c.Request.UserAgent(); ua != "" {
			fields = append(fields, zap.String("user_agent", ua))
		}

		reqLog := appLogger.WithContext(c.Request.Context(), log)

		switch {
		case len(c.Errors) > 0:
			reqLog.Error("request failed", append(fields, zap.String("errors", c.Errors.String()))...)
		case c.Writer.Status() >= 500:
			reqLog.Error("request failed", fields...)
		case c.Writer.Status() == 401 || c.Writer.Status() == 403:
			reqLog.Warn("request rejected", fields...)
		default:
			reqLog.Info("request completed", fields...)
		}
	}
}
