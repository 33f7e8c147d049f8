package routes_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/gtaroom/GTA-GAME-sub003/internal/core/domain"
	"github.com/gtaroom/GTA-GAME-sub003/internal/infra/config"
	"github.com/gtaroom/GTA-GAME-sub003/internal/transport/http/middleware"
	httproutes "github.com/gtaroom/GTA-GAME-sub003/internal/transport/http/routes"
	"github.com/gtaroom/GTA-GAME-sub003/internal/usecase"
)

type tokenVerifier map[string]domain.Principal

func (v tokenVerifier) Verify(raw string) (*domain.Principal, error) {
	principal, ok := v[raw]
	if !ok {
		return nil, usecase.ErrUnauthenticated
	}
	return &principal, nil
}

type stubCatalog struct {
	builtin domain.BuiltinTable
}

func (s stubCatalog) ListRoles(context.Context) ([]domain.Role, error) {
	return []domain.Role{{ID: "role-1", Name: "VIP_HOST", IsActive: true}}, nil
}

func (s stubCatalog) GetRole(_ context.Context, id string) (*domain.Role, error) {
	return &domain.Role{ID: id, Name: "VIP_HOST", IsActive: true}, nil
}

func (s stubCatalog) CreateRole(_ context.Context, actorID string, input usecase.CreateRoleInput) (*domain.Role, error) {
	return &domain.Role{ID: "role-2", Name: domain.NormalizeRoleName(input.Name), Permissions: input.Permissions, IsActive: true, CreatedBy: actorID}, nil
}

func (s stubCatalog) UpdateRole(_ context.Context, _ string, input usecase.UpdateRoleInput) (*domain.Role, error) {
	return &domain.Role{ID: input.ID, Name: "VIP_HOST", IsActive: true}, nil
}

func (s stubCatalog) DeleteRole(context.Context, string, string) error {
	return nil
}

func (s stubCatalog) ResolvePermissions(_ context.Context, roleName string) (usecase.EffectivePermissions, error) {
	set, ok := s.builtin.Lookup(roleName)
	if !ok {
		return usecase.EffectivePermissions{}, usecase.ErrRoleNotFound
	}
	return usecase.EffectivePermissions{Role: roleName, Source: domain.RoleSourceBuiltin, Permissions: set}, nil
}

func (s stubCatalog) Builtin() domain.BuiltinTable {
	return s.builtin
}

type stubAssigner struct{}

func (stubAssigner) AssignRole(_ context.Context, _ string, userID, roleName string) (*domain.User, error) {
	return &domain.User{ID: userID, Role: roleName}, nil
}

func (stubAssigner) BulkAssignRole(_ context.Context, _ string, userIDs []string, roleName string) (usecase.BulkAssignResult, error) {
	return usecase.BulkAssignResult{Role: roleName, ModifiedCount: int64(len(userIDs)), TotalRequested: len(userIDs)}, nil
}

func (stubAssigner) ListUsersByRole(context.Context, string, int, int) (usecase.UserPage, error) {
	return usecase.UserPage{Page: 1, Limit: 20}, nil
}

type memoryRateLimitStore struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
}

func (m *memoryRateLimitStore) TrimWindow(context.Context, string, time.Duration, time.Time) error {
	return nil
}

func (m *memoryRateLimitStore) CountAttempts(_ context.Context, identifier string, _ time.Duration, _ time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.attempts[identifier]), nil
}

func (m *memoryRateLimitStore) RecordAttempt(_ context.Context, identifier string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[identifier] = append(m.attempts[identifier], at)
	return nil
}

func (m *memoryRateLimitStore) OldestAttempt(_ context.Context, identifier string, _ time.Duration, _ time.Time) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.attempts[identifier]) == 0 {
		return time.Time{}, false, nil
	}
	return m.attempts[identifier][0], true, nil
}

var tokens = tokenVerifier{
	"admin-token":    {ID: "admin-1", Role: domain.RoleAdmin},
	"designer-token": {ID: "designer-1", Role: domain.RoleDesigner},
	"support-token":  {ID: "support-1", Role: domain.RoleSupport},
}

func newRouter(t *testing.T, roleWriteLimit int) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := prometheus.NewRegistry()
	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("NewHTTPMetrics: %v", err)
	}

	cfg := &config.AppConfig{
		App: config.AppSettings{Env: "test"},
		RateLimit: config.RateLimitSettings{
			WindowDuration:       time.Minute,
			RoleWriteMaxAttempts: roleWriteLimit,
		},
	}
	logger := zaptest.NewLogger(t)
	builtin := domain.DefaultBuiltinTable()

	return httproutes.Register(httproutes.Dependencies{
		Config:      cfg,
		Logger:      logger,
		RateLimiter: middleware.NewRateLimiter(&memoryRateLimitStore{attempts: make(map[string][]time.Time)}, logger),
		Metrics:     metrics,
		Gatherer:    registry,
		Verifier:    tokens,
		Authorizer:  usecase.NewPermissionResolver(builtin, nil),
		Roles:       stubCatalog{builtin: builtin},
		Assignments: stubAssigner{},
	})
}

func do(r http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger, _ := zap.NewDevelopment()
	cfg := &config.AppConfig{App: config.AppSettings{Env: "test"}}

	r := httproutes.Register(httproutes.Dependencies{
		Config: cfg,
		Logger: logger,
	})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/healthz", nil)

	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	if w := do(r, http.MethodGet, "/api/v1/roles", "admin-token", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected api routes to be absent without services, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r := newRouter(t, 0)

	do(r, http.MethodGet, "/healthz", "", "")
	w := do(r, http.MethodGet, "/metrics", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "rbac_http_requests_total") {
		t.Fatalf("expected http metrics in exposition, got %s", w.Body.String())
	}
}

func TestRouteGates(t *testing.T) {
	r := newRouter(t, 0)

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   string
		want   int
	}{
		{name: "no token", method: http.MethodGet, path: "/api/v1/roles", want: http.StatusUnauthorized},
		{name: "support cannot list roles", method: http.MethodGet, path: "/api/v1/roles", token: "support-token", want: http.StatusForbidden},
		{name: "designer lists roles", method: http.MethodGet, path: "/api/v1/roles", token: "designer-token", want: http.StatusOK},
		{name: "designer reads capabilities", method: http.MethodGet, path: "/api/v1/roles/capabilities", token: "designer-token", want: http.StatusOK},
		{name: "support cannot read capabilities", method: http.MethodGet, path: "/api/v1/roles/capabilities", token: "support-token", want: http.StatusForbidden},
		{name: "designer cannot create", method: http.MethodPost, path: "/api/v1/roles", token: "designer-token", body: `{"name":"vip host","description":"hosts"}`, want: http.StatusForbidden},
		{name: "admin creates", method: http.MethodPost, path: "/api/v1/roles", token: "admin-token", body: `{"name":"vip host","description":"hosts","permissions":{"vip:manage":true}}`, want: http.StatusCreated},
		{name: "support lists users by role", method: http.MethodGet, path: "/api/v1/roles/by-name/SUPPORT/users", token: "support-token", want: http.StatusOK},
		{name: "support cannot assign", method: http.MethodPut, path: "/api/v1/users/u1/role", token: "support-token", body: `{"role":"FINANCE"}`, want: http.StatusForbidden},
		{name: "admin assigns", method: http.MethodPut, path: "/api/v1/users/u1/role", token: "admin-token", body: `{"role":"FINANCE"}`, want: http.StatusOK},
		{name: "admin bulk assigns", method: http.MethodPost, path: "/api/v1/users/roles/bulk", token: "admin-token", body: `{"userIds":["u1","u2"],"role":"FINANCE"}`, want: http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(r, tc.method, tc.path, tc.token, tc.body)
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestMyPermissions(t *testing.T) {
	r := newRouter(t, 0)

	w := do(r, http.MethodGet, "/api/v1/me/permissions", "support-token", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		Data struct {
			Role        string          `json:"role"`
			Permissions map[string]bool `json:"permissions"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Data.Role != domain.RoleSupport || !body.Data.Permissions[domain.CapUsersRead] {
		t.Fatalf("unexpected permissions payload: %+v", body.Data)
	}
}

func TestRoleWriteRateLimit(t *testing.T) {
	r := newRouter(t, 1)
	body := `{"name":"vip host","description":"hosts"}`

	if w := do(r, http.MethodPost, "/api/v1/roles", "admin-token", body); w.Code != http.StatusCreated {
		t.Fatalf("expected first write to pass, got %d", w.Code)
	}

	w := do(r, http.MethodPost, "/api/v1/roles", "admin-token", body)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}

	if w := do(r, http.MethodGet, "/api/v1/roles", "admin-token", ""); w.Code != http.StatusOK {
		t.Fatalf("reads should not be limited, got %d", w.Code)
	}
}

func TestRateLimitRunsBeforePermissionGate(t *testing.T) {
	r := newRouter(t, 1)
	body := `{"name":"vip host","description":"hosts"}`

	if w := do(r, http.MethodPost, "/api/v1/roles", "designer-token", body); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for designer, got %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/api/v1/roles", "designer-token", body); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected denied attempts to count against the limit, got %d", w.Code)
	}
}
