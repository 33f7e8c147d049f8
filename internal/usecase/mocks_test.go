package usecase

import (
	"context"
	"sort"
	"sync"

	"github.com/gtaroom/GTA-GAME-sub003/internal/core/domain"
	"github.com/gtaroom/GTA-GAME-sub003/internal/core/port"
	"github.com/gtaroom/GTA-GAME-sub003/internal/repository"
)

// roleRepoMock is a map-backed RoleRepository keyed by id.
type roleRepoMock struct {
	mu        sync.Mutex
	roles     map[string]domain.Role
	createErr error
	getErr    error
	lookups   int
}

func newRoleRepoMock(roles ...domain.Role) *roleRepoMock {
	m := &roleRepoMock{roles: make(map[string]domain.Role)}
	for _, role := range roles {
		m.roles[role.ID] = role
	}
	return m
}

func (m *roleRepoMock) Create(_ context.Context, role domain.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, existing := range m.roles {
		if existing.Name == role.Name {
			return repository.ErrConflict
		}
	}
	m.roles[role.ID] = role
	return nil
}

func (m *roleRepoMock) GetByID(_ context.Context, id string) (*domain.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if role, ok := m.roles[id]; ok {
		role.Permissions = role.Permissions.Clone()
		return &role, nil
	}
	return nil, repository.ErrNotFound
}

func (m *roleRepoMock) GetByName(_ context.Context, name string) (*domain.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, role := range m.roles {
		if role.Name == name {
			role.Permissions = role.Permissions.Clone()
			return &role, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *roleRepoMock) GetActiveByName(_ context.Context, name string) (*domain.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, role := range m.roles {
		if role.Name == name && role.IsActive {
			role.Permissions = role.Permissions.Clone()
			return &role, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *roleRepoMock) ListActive(_ context.Context) ([]domain.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	roles := make([]domain.Role, 0, len(m.roles))
	for _, role := range m.roles {
		if role.IsActive {
			roles = append(roles, role)
		}
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].CreatedAt.After(roles[j].CreatedAt) })
	return roles, nil
}

func (m *roleRepoMock) Update(_ context.Context, role domain.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[role.ID]; !ok {
		return repository.ErrNotFound
	}
	for id, existing := range m.roles {
		if id != role.ID && existing.Name == role.Name {
			return repository.ErrConflict
		}
	}
	m.roles[role.ID] = role
	return nil
}

func (m *roleRepoMock) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.roles, id)
	return nil
}

func (m *roleRepoMock) lookupCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookups
}

// userRepoMock is a map-backed UserRepository.
type userRepoMock struct {
	mu      sync.Mutex
	users   map[string]domain.User
	countFn func(role string) (int, error)
}

func newUserRepoMock(users ...domain.User) *userRepoMock {
	m := &userRepoMock{users: make(map[string]domain.User)}
	for _, user := range users {
		m.users[user.ID] = user
	}
	return m
}

func (m *userRepoMock) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.users[id]; ok {
		return &user, nil
	}
	return nil, repository.ErrNotFound
}

func (m *userRepoMock) UpdateRole(_ context.Context, id string, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.Role = role
	m.users[id] = user
	return nil
}

func (m *userRepoMock) BulkUpdateRole(_ context.Context, ids []string, role string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var modified int64
	for _, id := range ids {
		user, ok := m.users[id]
		if !ok {
			continue
		}
		user.Role = role
		m.users[id] = user
		modified++
	}
	return modified, nil
}

func (m *userRepoMock) CountByRole(_ context.Context, role string) (int, error) {
	if m.countFn != nil {
		return m.countFn(role)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, user := range m.users {
		if user.Role == role {
			count++
		}
	}
	return count, nil
}

func (m *userRepoMock) ListByRole(_ context.Context, filter port.UserFilter) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := make([]domain.User, 0)
	for _, user := range m.users {
		if user.Role == filter.Role {
			matched = append(matched, user)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	if filter.Offset >= len(matched) {
		return []domain.User{}, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[filter.Offset:end], nil
}

// cacheMock is an in-memory PermissionCache that records invalidations and
// bumps a per-role generation on each one.
type cacheMock struct {
	mu          sync.Mutex
	entries     map[string]domain.PermissionSet
	generations map[string]int64
	invalidated []string
	invalidErr  error
}

func newCacheMock() *cacheMock {
	return &cacheMock{
		entries:     make(map[string]domain.PermissionSet),
		generations: make(map[string]int64),
	}
}

func (c *cacheMock) Get(_ context.Context, roleName string) (domain.PermissionSet, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.entries[roleName]
	return set.Clone(), ok, nil
}

func (c *cacheMock) Generation(_ context.Context, roleName string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[roleName], nil
}

func (c *cacheMock) Set(_ context.Context, roleName string, generation int64, set domain.PermissionSet) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[roleName] != generation {
		return false, nil
	}
	c.entries[roleName] = set.Clone()
	return true, nil
}

func (c *cacheMock) Invalidate(_ context.Context, roleNames ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.invalidErr != nil {
		return c.invalidErr
	}
	for _, name := range roleNames {
		delete(c.entries, name)
		c.generations[name]++
		c.invalidated = append(c.invalidated, name)
	}
	return nil
}

// lockerMock serialises callers per role name with in-process mutexes. When
// entered is set, each caller sends the role name before waiting for the lock.
type lockerMock struct {
	roles   port.RoleRepository
	users   port.UserRepository
	entered chan string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	calls []string
}

func newLockerMock(roles port.RoleRepository, users port.UserRepository) *lockerMock {
	return &lockerMock{roles: roles, users: users, locks: make(map[string]*sync.Mutex)}
}

func (l *lockerMock) WithRoleLock(ctx context.Context, roleName string, fn func(ctx context.Context, scope port.RoleScope) error) error {
	l.mu.Lock()
	lock, ok := l.locks[roleName]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[roleName] = lock
	}
	l.calls = append(l.calls, roleName)
	l.mu.Unlock()

	if l.entered != nil {
		l.entered <- roleName
	}

	lock.Lock()
	defer lock.Unlock()
	return fn(ctx, port.RoleScope{Roles: l.roles, Users: l.users})
}

func (l *lockerMock) lockedRoles() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// pausingRoleRepo blocks the first GetActiveByName after it has read the row
// until release is closed.
type pausingRoleRepo struct {
	*roleRepoMock
	loaded  chan struct{}
	release chan struct{}
	once    sync.Once
}

func newPausingRoleRepo(base *roleRepoMock) *pausingRoleRepo {
	return &pausingRoleRepo{
		roleRepoMock: base,
		loaded:       make(chan struct{}),
		release:      make(chan struct{}),
	}
}

func (r *pausingRoleRepo) GetActiveByName(ctx context.Context, name string) (*domain.Role, error) {
	role, err := r.roleRepoMock.GetActiveByName(ctx, name)
	r.once.Do(func() {
		close(r.loaded)
		<-r.release
	})
	return role, err
}

// publisherMock records published events.
type publisherMock struct {
	mu       sync.Mutex
	created  []domain.RoleChangedEvent
	updated  []domain.RoleChangedEvent
	deleted  []domain.RoleChangedEvent
	assigned []domain.UserRoleAssignedEvent
	err      error
}

func (p *publisherMock) PublishRoleCreated(_ context.Context, event domain.RoleChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, event)
	return p.err
}

func (p *publisherMock) PublishRoleUpdated(_ context.Context, event domain.RoleChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updated = append(p.updated, event)
	return p.err
}

func (p *publisherMock) PublishRoleDeleted(_ context.Context, event domain.RoleChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, event)
	return p.err
}

func (p *publisherMock) PublishUserRoleAssigned(_ context.Context, event domain.UserRoleAssignedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.assigned = append(p.assigned, event)
	return p.err
}

// recorderMock counts decisions by check/source/outcome.
type recorderMock struct {
	mu        sync.Mutex
	decisions []string
}

func (r *recorderMock) RecordDecision(check, source, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions = append(r.decisions, check+"/"+source+"/"+outcome)
}

var (
	_ port.RoleRepository  = (*roleRepoMock)(nil)
	_ port.UserRepository  = (*userRepoMock)(nil)
	_ port.PermissionCache = (*cacheMock)(nil)
	_ port.RoleLocker      = (*lockerMock)(nil)
	_ port.RoleRepository  = (*pausingRoleRepo)(nil)
	_ port.EventPublisher  = (*publisherMock)(nil)
)
