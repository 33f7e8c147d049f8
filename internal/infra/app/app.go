package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/gtaroom/GTA-GAME-sub003/internal/core/domain"
	"github.com/gtaroom/GTA-GAME-sub003/internal/core/port"
	"github.com/gtaroom/GTA-GAME-sub003/internal/infra/config"
	"github.com/gtaroom/GTA-GAME-sub003/internal/infra/database"
	kafkainfra "github.com/gtaroom/GTA-GAME-sub003/internal/infra/kafka"
	"github.com/gtaroom/GTA-GAME-sub003/internal/infra/logger"
	redisinfra "github.com/gtaroom/GTA-GAME-sub003/internal/infra/redis"
	"github.com/gtaroom/GTA-GAME-sub003/internal/infra/security"
	"github.com/gtaroom/GTA-GAME-sub003/internal/infra/telemetry"
	postgresrepo "github.com/gtaroom/GTA-GAME-sub003/internal/repository/postgres"
	redisrepo "github.com/gtaroom/GTA-GAME-sub003/internal/repository/redis"
	"github.com/gtaroom/GTA-GAME-sub003/internal/transport/http/middleware"
	"github.com/gtaroom/GTA-GAME-sub003/internal/transport/http/routes"
	"github.com/gtaroom/GTA-GAME-sub003/internal/usecase"
)

type Application struct {
	cfg       *config.AppConfig
	handler   http.Handler
	logger    *zap.Logger
	store     *postgresrepo.Store
	redis     *redisinfra.Client
	producer  *kafkainfra.Producer
	telemetry *telemetry.Provider
}

// Services is the wired RBAC core, shared by the API server and rbacctl.
type Services struct {
	Roles       *usecase.RoleService
	Assignments *usecase.AssignmentService
	Resolver    *usecase.PermissionResolver
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	provider, err := telemetry.Attach(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	store, err := OpenStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	redisClient, err := redisinfra.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	a := &Application{
		cfg:       cfg,
		logger:    log,
		store:     store,
		redis:     redisClient,
		telemetry: provider,
	}

	// Initialize Kafka event publisher
	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			a.producer = kafkaProducer
			eventPublisher = kafkainfra.NewEventPublisher(kafkaProducer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	services := NewServices(cfg, store.Repositories, redisClient, eventPublisher, provider.Authz, log)

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: cfg.RateLimit.KeyPrefix,
		TTL:       rateLimitWindow * 2,
	})
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: provider.Registry})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	keyProvider, err := security.NewDirKeyProvider(cfg.JWT.KeyDirectory)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init key provider: %w", err)
	}
	log.Info("verification keys loaded", zap.Strings("kids", keyProvider.KeyIDs()))

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		Metrics:     httpMetrics,
		Gatherer:    provider.Registry,
		Verifier:    security.NewTokenVerifier(keyProvider, cfg.JWT),
		Authorizer:  services.Resolver,
		Roles:       services.Roles,
		Assignments: services.Assignments,
		Database:    store,
		Cache:       redisClient,
	})

	a.handler = otelhttp.NewHandler(engine, cfg.Telemetry.ServiceName)

	return a, nil
}

// OpenStore connects to PostgreSQL and applies pending migrations when
// auto_migrate is set.
func OpenStore(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (*postgresrepo.Store, error) {
	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	if cfg.Postgres.AutoMigrate {
		if err := database.NewMigrator(pool, log).Migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
	}

	return postgresrepo.NewStore(pool), nil
}

// NewServices wires the role registry, assignment service and resolver over
// the given repositories. A nil redis client disables the permission cache.
func NewServices(cfg *config.AppConfig, repos *postgresrepo.Repositories, redisClient *redisinfra.Client, events port.EventPublisher, recorder usecase.DecisionRecorder, log *zap.Logger) *Services {
	roleService := usecase.NewRoleService(repos.Roles, repos.Users, domain.DefaultBuiltinTable()).
		WithEventPublisher(events).
		WithLogger(log)
	if cfg.RBAC.CacheEnabled && redisClient != nil {
		roleService.WithPermissionCache(redisrepo.NewPermissionCache(redisClient.Client(), cfg.RBAC.CachePrefix, cfg.RBAC.CacheTTL))
	}

	assignmentService := usecase.NewAssignmentService(repos.Users, roleService).
		WithEventPublisher(events).
		WithLogger(log)
	if repos.Locker != nil {
		roleService.WithRoleLocker(repos.Locker)
		assignmentService.WithRoleLocker(repos.Locker)
	}

	var opts []usecase.ResolverOption
	if recorder != nil {
		opts = append(opts, usecase.WithDecisionRecorder(recorder))
	}

	return &Services{
		Roles:       roleService,
		Assignments: assignmentService,
		Resolver:    usecase.NewPermissionResolver(roleService.Builtin(), roleService, opts...),
	}
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.close()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting RBAC API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

// close releases resources in reverse order of acquisition.
func (a *Application) close() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
	if a.telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.telemetry.Shutdown(ctx); err != nil {
			a.logger.Warn("shutdown telemetry", zap.Error(err))
		}
	}
}
