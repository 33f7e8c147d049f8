package handlers

import (
	"context"
	"sync"

	"github.com/gtaroom/GTA-GAME-sub003/internal/core/domain"
	"github.com/gtaroom/GTA-GAME-sub003/internal/usecase"
)

type fakeCatalog struct {
	mu       sync.Mutex
	roles    map[string]domain.Role
	builtin  domain.BuiltinTable
	err      error
	created  []usecase.CreateRoleInput
	updated  []usecase.UpdateRoleInput
	deleted  []string
	actorIDs []string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{roles: make(map[string]domain.Role), builtin: domain.DefaultBuiltinTable()}
}

func (f *fakeCatalog) ListRoles(context.Context) ([]domain.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Role, 0, len(f.roles))
	for _, role := range f.roles {
		out = append(out, role)
	}
	return out, nil
}

func (f *fakeCatalog) GetRole(_ context.Context, id string) (*domain.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	role, ok := f.roles[id]
	if !ok {
		return nil, usecase.ErrRoleNotFound
	}
	return &role, nil
}

func (f *fakeCatalog) CreateRole(_ context.Context, actorID string, input usecase.CreateRoleInput) (*domain.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, input)
	f.actorIDs = append(f.actorIDs, actorID)
	role := domain.Role{
		ID:          "role-1",
		Name:        domain.NormalizeRoleName(input.Name),
		Description: input.Description,
		Permissions: input.Permissions,
		IsActive:    true,
		CreatedBy:   actorID,
		UpdatedBy:   actorID,
	}
	f.roles[role.ID] = role
	return &role, nil
}

func (f *fakeCatalog) UpdateRole(_ context.Context, actorID string, input usecase.UpdateRoleInput) (*domain.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	role, ok := f.roles[input.ID]
	if !ok {
		return nil, usecase.ErrRoleNotFound
	}
	f.updated = append(f.updated, input)
	if input.Permissions != nil {
		role.Permissions = input.Permissions
	}
	if input.IsActive != nil {
		role.IsActive = *input.IsActive
	}
	role.UpdatedBy = actorID
	f.roles[role.ID] = role
	return &role, nil
}

func (f *fakeCatalog) DeleteRole(_ context.Context, _ string, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	delete(f.roles, id)
	return nil
}

func (f *fakeCatalog) ResolvePermissions(_ context.Context, roleName string) (usecase.EffectivePermissions, error) {
	if set, ok := f.builtin.Lookup(roleName); ok {
		return usecase.EffectivePermissions{Role: roleName, Source: domain.RoleSourceBuiltin, Permissions: set}, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, role := range f.roles {
		if role.Name == roleName && role.IsActive {
			return usecase.EffectivePermissions{Role: roleName, Source: domain.RoleSourceCustom, Permissions: role.Permissions}, nil
		}
	}
	return usecase.EffectivePermissions{}, usecase.ErrRoleNotFound
}

func (f *fakeCatalog) Builtin() domain.BuiltinTable {
	return f.builtin
}

type fakeAssigner struct {
	mu       sync.Mutex
	err      error
	assigned map[string]string
	bulk     []string
	pages    []int
	limits   []int
	users    []domain.User
}

func newFakeAssigner() *fakeAssigner {
	return &fakeAssigner{assigned: make(map[string]string)}
}

func (f *fakeAssigner) AssignRole(_ context.Context, _ string, userID, roleName string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.assigned[userID] = roleName
	return &domain.User{ID: userID, Username: "player-" + userID, Role: roleName}, nil
}

func (f *fakeAssigner) BulkAssignRole(_ context.Context, _ string, userIDs []string, roleName string) (usecase.BulkAssignResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return usecase.BulkAssignResult{}, f.err
	}
	f.bulk = append(f.bulk, userIDs...)
	return usecase.BulkAssignResult{Role: roleName, ModifiedCount: int64(len(userIDs) - 1), TotalRequested: len(userIDs)}, nil
}

func (f *fakeAssigner) ListUsersByRole(_ context.Context, roleName string, page, limit int) (usecase.UserPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return usecase.UserPage{}, f.err
	}
	f.pages = append(f.pages, page)
	f.limits = append(f.limits, limit)
	return usecase.UserPage{Users: f.users, Total: len(f.users), Page: max(page, 1), Limit: 20, TotalPages: 1}, nil
}
