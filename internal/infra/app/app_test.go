package app

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	pgxmock "github.com/pashagolub/pgxmock/v2"
	"go.uber.org/zap/zaptest"

	"github.com/gtaroom/GTA-GAME-sub003/internal/apperr"
	"github.com/gtaroom/GTA-GAME-sub003/internal/core/domain"
	"github.com/gtaroom/GTA-GAME-sub003/internal/infra/config"
	kafkainfra "github.com/gtaroom/GTA-GAME-sub003/internal/infra/kafka"
	redisinfra "github.com/gtaroom/GTA-GAME-sub003/internal/infra/redis"
	postgresrepo "github.com/gtaroom/GTA-GAME-sub003/internal/repository/postgres"
)

type decision struct {
	check, source, outcome string
}

type recordingRecorder struct {
	mu        sync.Mutex
	decisions []decision
}

func (r *recordingRecorder) RecordDecision(check, source, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions = append(r.decisions, decision{check, source, outcome})
}

func newMockRepositories(t *testing.T) (*postgresrepo.Repositories, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)
	return postgresrepo.NewRepositories(mock), mock
}

func TestNewServicesResolvesBuiltinRolesWithoutStorage(t *testing.T) {
	repos, mock := newMockRepositories(t)
	recorder := &recordingRecorder{}
	log := zaptest.NewLogger(t)

	services := NewServices(&config.AppConfig{}, repos, nil, kafkainfra.NewStubPublisher(log), recorder, log)
	ctx := context.Background()

	if err := services.Resolver.HasPermission(ctx, &domain.Principal{ID: "a1", Role: domain.RoleAdmin}, "anything:at_all"); err != nil {
		t.Fatalf("expected superuser bypass, got %v", err)
	}
	if err := services.Resolver.HasPermission(ctx, &domain.Principal{ID: "s1", Role: domain.RoleSupport}, domain.CapUsersRead); err != nil {
		t.Fatalf("expected SUPPORT to read users, got %v", err)
	}
	err := services.Resolver.HasPermission(ctx, &domain.Principal{ID: "s1", Role: domain.RoleSupport}, domain.CapRolesManage)
	if apperr.KindOf(err) != apperr.KindForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}

	effective, err := services.Roles.ResolvePermissions(ctx, domain.RoleDesigner)
	if err != nil || effective.Source != domain.RoleSourceBuiltin {
		t.Fatalf("unexpected designer resolution: %+v, %v", effective, err)
	}

	if len(recorder.decisions) != 3 {
		t.Fatalf("expected three recorded decisions, got %+v", recorder.decisions)
	}
	if got := recorder.decisions[0]; got.source != "superuser" || got.outcome != "allow" {
		t.Fatalf("unexpected superuser decision: %+v", got)
	}
	if got := recorder.decisions[2]; got.outcome != "deny" {
		t.Fatalf("unexpected deny decision: %+v", got)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("built-in resolution should not touch storage: %v", err)
	}
}

func TestNewServicesCachesCustomRoles(t *testing.T) {
	repos, mock := newMockRepositories(t)
	log := zaptest.NewLogger(t)

	mr := miniredis.RunT(t)
	host, portStr, _ := strings.Cut(mr.Addr(), ":")
	port, _ := strconv.Atoi(portStr)
	redisClient, err := redisinfra.NewClient(context.Background(), config.RedisSettings{Host: host, Port: port}, log)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = redisClient.Close() })

	cfg := &config.AppConfig{RBAC: config.RBACSettings{CacheEnabled: true, CacheTTL: time.Minute, CachePrefix: "rbac:perms"}}
	services := NewServices(cfg, repos, redisClient, kafkainfra.NewStubPublisher(log), nil, log)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT .* FROM rbac\.custom_roles WHERE is_active = \$1 AND name = \$2 LIMIT 1`).
		WithArgs(true, "VIP_HOST").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "description", "permissions", "is_active", "created_by", "updated_by", "created_at", "updated_at",
		}).AddRow("role-1", "VIP_HOST", "Hosts VIPs", []byte(`{"vip:manage":true}`), true, "admin-1", "admin-1", now, now))

	principal := &domain.Principal{ID: "u1", Role: "VIP_HOST"}
	for i := 0; i < 2; i++ {
		if err := services.Resolver.HasPermission(context.Background(), principal, domain.CapVIPManage); err != nil {
			t.Fatalf("call %d: expected allow, got %v", i, err)
		}
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expected exactly one storage lookup: %v", err)
	}
	if keys := mr.Keys(); len(keys) != 1 {
		t.Fatalf("expected one cached role, got %v", keys)
	}

	err = services.Resolver.HasPermission(context.Background(), principal, domain.CapWalletRead)
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden for ungranted capability, got %v", err)
	}
}
