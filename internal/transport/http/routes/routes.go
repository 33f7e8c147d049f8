package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/gtaroom/GTA-GAME-sub003/internal/core/domain"
	"github.com/gtaroom/GTA-GAME-sub003/internal/infra/config"
	"github.com/gtaroom/GTA-GAME-sub003/internal/transport/http/handlers"
	"github.com/gtaroom/GTA-GAME-sub003/internal/transport/http/middleware"
)

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Metrics     *middleware.HTTPMetrics
	Gatherer    prometheus.Gatherer
	Verifier    middleware.TokenVerifier
	Authorizer  middleware.Authorizer
	Roles       handlers.RoleCatalog
	Assignments handlers.RoleAssigner
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.CORS(deps.Config.App.CORSAllowedOrigins))
	r.Use(deps.Metrics.Handler())

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	if deps.Verifier == nil || deps.Authorizer == nil || deps.Roles == nil || deps.Assignments == nil {
		return r
	}

	authz := deps.Authorizer
	roleWrite := buildRateLimit(deps, "role_write", deps.Config.RateLimit.RoleWriteMaxAttempts)
	assign := buildRateLimit(deps, "role_assign", deps.Config.RateLimit.AssignMaxAttempts)

	roleHandler := handlers.NewRoleHandler(deps.Roles, deps.Assignments)
	userHandler := handlers.NewUserHandler(deps.Assignments, deps.Roles)

	api := r.Group("/api/v1")
	api.Use(middleware.RequireAuth(deps.Verifier))
	{
		roles := api.Group("/roles")
		readRoles := middleware.RequireAnyPermission(authz, domain.CapRolesRead, domain.CapRolesManage)
		adminOnly := middleware.RequireRole(authz, domain.RoleAdmin)

		roles.GET("", readRoles, roleHandler.ListRoles)
		roles.GET("/capabilities", middleware.RequireRole(authz, domain.RoleAdmin, domain.RoleDesigner), roleHandler.Capabilities)
		roles.GET("/permissions/:name", middleware.RequirePermission(authz, domain.CapRolesRead), roleHandler.RolePermissions)
		roles.GET("/by-name/:name/users", middleware.RequirePermission(authz, domain.CapUsersRead), roleHandler.UsersByRole)
		roles.GET("/:id", readRoles, roleHandler.GetRole)
		roles.POST("", chain(roleWrite, adminOnly, roleHandler.CreateRole)...)
		roles.PATCH("/:id", chain(roleWrite, adminOnly, roleHandler.UpdateRole)...)
		roles.DELETE("/:id", chain(roleWrite, adminOnly, roleHandler.DeleteRole)...)

		users := api.Group("/users")
		canAssign := middleware.RequireAllPermissions(authz, domain.CapUsersRead, domain.CapUsersAssignRole)

		users.PUT("/:id/role", chain(assign, canAssign, userHandler.AssignRole)...)
		users.POST("/roles/bulk", chain(assign, canAssign, userHandler.BulkAssignRole)...)

		api.GET("/me/permissions", userHandler.MyPermissions)
	}

	return r
}

// chain drops nil handlers so optional middleware can be listed inline.
func chain(handlers ...gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			out = append(out, h)
		}
	}
	return out
}

// buildRateLimit returns a per-principal sliding-window limiter, or nil when
// limiting is disabled.
func buildRateLimit(deps Dependencies, name string, limit int) gin.HandlerFunc {
	if deps.RateLimiter == nil || limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	return deps.RateLimiter.RateLimit(middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.PrincipalIdentifier(),
	})
}
