package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gtaroom/GTA-GAME-sub003/internal/apperr"
	"github.com/gtaroom/GTA-GAME-sub003/internal/core/domain"
	"github.com/gtaroom/GTA-GAME-sub003/internal/core/port"
	"github.com/gtaroom/GTA-GAME-sub003/internal/repository"
)

// CreateRoleInput captures the payload for creating a custom role.
type CreateRoleInput struct {
	Name        string
	Description string
	Permissions domain.PermissionSet
}

// UpdateRoleInput captures a partial update. Nil fields are left unchanged.
type UpdateRoleInput struct {
	ID          string
	Name        *string
	Description *string
	Permissions domain.PermissionSet
	IsActive    *bool
}

// EffectivePermissions is the uniform {role, permissions} view of any role.
type EffectivePermissions struct {
	Role        string
	Source      domain.RoleSource
	Permissions domain.PermissionSet
}

// RoleService owns the catalog of built-in and custom roles.
type RoleService struct {
	roles   port.RoleRepository
	users   port.UserRepository
	builtin domain.BuiltinTable
	cache   port.PermissionCache
	locker  port.RoleLocker
	events  port.EventPublisher
	logger  *zap.Logger
	now     func() time.Time
}

// NewRoleService constructs a RoleService.
func NewRoleService(roles port.RoleRepository, users port.UserRepository, builtin domain.BuiltinTable) *RoleService {
	return &RoleService{
		roles:   roles,
		users:   users,
		builtin: builtin,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
}

// WithPermissionCache enables caching of custom-role permission sets.
func (s *RoleService) WithPermissionCache(cache port.PermissionCache) *RoleService {
	s.cache = cache
	return s
}

// WithRoleLocker makes DeleteRole count holders and delete under a
// transactional lock on the role name.
func (s *RoleService) WithRoleLocker(locker port.RoleLocker) *RoleService {
	s.locker = locker
	return s
}

// WithEventPublisher enables role lifecycle events.
func (s *RoleService) WithEventPublisher(events port.EventPublisher) *RoleService {
	s.events = events
	return s
}

// WithLogger attaches a logger.
func (s *RoleService) WithLogger(logger *zap.Logger) *RoleService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithClock overrides the time source (tests).
func (s *RoleService) WithClock(now func() time.Time) *RoleService {
	if now != nil {
		s.now = now
	}
	return s
}

// Builtin exposes the injected built-in role table.
func (s *RoleService) Builtin() domain.BuiltinTable {
	return s.builtin
}

// ListRoles returns active custom roles, newest first.
func (s *RoleService) ListRoles(ctx context.Context) ([]domain.Role, error) {
	roles, err := s.roles.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}

// GetRole retrieves a custom role by id.
func (s *RoleService) GetRole(ctx context.Context, id string) (*domain.Role, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperr.Validation("role id is required")
	}

	role, err := s.roles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("get role: %w", err)
	}
	return role, nil
}

// CreateRole provisions a new custom role.
func (s *RoleService) CreateRole(ctx context.Context, actorID string, input CreateRoleInput) (*domain.Role, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return nil, ErrUnauthenticated
	}

	name := domain.NormalizeRoleName(input.Name)
	if name == "" {
		return nil, apperr.Validation("role name is required")
	}

	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, apperr.Validation("role description is required")
	}

	if err := s.ensureNameAvailable(ctx, name, ""); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	role := domain.Role{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Permissions: input.Permissions.Clone(),
		IsActive:    true,
		CreatedBy:   actorID,
		UpdatedBy:   actorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.warnUnknownCapabilities(role.Name, role.Permissions)

	if err := s.roles.Create(ctx, role); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrRoleExists
		}
		return nil, fmt.Errorf("create role: %w", err)
	}

	s.invalidate(ctx, role.Name)

	s.publish(ctx, "created", domain.RoleChangedEvent{
		RoleID:      role.ID,
		RoleName:    role.Name,
		Permissions: role.Permissions,
		IsActive:    role.IsActive,
		ActorID:     actorID,
		OccurredAt:  now,
	})

	s.logger.Info("custom role created",
		zap.String("role_id", role.ID),
		zap.String("role", role.Name),
		zap.String("actor_id", actorID),
	)

	return &role, nil
}

// UpdateRole applies a partial update to a custom role.
func (s *RoleService) UpdateRole(ctx context.Context, actorID string, input UpdateRoleInput) (*domain.Role, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return nil, ErrUnauthenticated
	}

	role, err := s.GetRole(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	previousName := role.Name

	if input.Name != nil {
		name := domain.NormalizeRoleName(*input.Name)
		if name == "" {
			return nil, apperr.Validation("role name cannot be empty")
		}
		if name != role.Name {
			if err := s.ensureNameAvailable(ctx, name, role.ID); err != nil {
				return nil, err
			}
			role.Name = name
		}
	}

	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		if description == "" {
			return nil, apperr.Validation("role description cannot be empty")
		}
		role.Description = description
	}

	if input.Permissions != nil {
		role.Permissions = input.Permissions.Clone()
		s.warnUnknownCapabilities(role.Name, role.Permissions)
	}

	if input.IsActive != nil {
		role.IsActive = *input.IsActive
	}

	role.UpdatedBy = actorID
	role.UpdatedAt = s.now().UTC()

	if err := s.roles.Update(ctx, *role); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrRoleNotFound
		case errors.Is(err, repository.ErrConflict):
			return nil, ErrRoleExists
		}
		return nil, fmt.Errorf("update role: %w", err)
	}

	s.invalidate(ctx, previousName, role.Name)

	event := domain.RoleChangedEvent{
		RoleID:      role.ID,
		RoleName:    role.Name,
		Permissions: role.Permissions,
		IsActive:    role.IsActive,
		ActorID:     actorID,
		OccurredAt:  role.UpdatedAt,
	}
	if previousName != role.Name {
		event.PreviousName = previousName
		s.logger.Warn("custom role renamed; users holding the old name are not reassigned",
			zap.String("role_id", role.ID),
			zap.String("old_name", previousName),
			zap.String("new_name", role.Name),
		)
	}
	s.publish(ctx, "updated", event)

	return role, nil
}

// DeleteRole hard-deletes a custom role once no user holds its name.
func (s *RoleService) DeleteRole(ctx context.Context, actorID, id string) error {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return ErrUnauthenticated
	}

	role, err := s.GetRole(ctx, id)
	if err != nil {
		return err
	}

	err = s.withRoleLock(ctx, role.Name, func(ctx context.Context, scope port.RoleScope) error {
		count, err := scope.Users.CountByRole(ctx, role.Name)
		if err != nil {
			return fmt.Errorf("count users with role: %w", err)
		}
		if count > 0 {
			return &apperr.Error{
				Kind:    apperr.KindValidation,
				Message: fmt.Sprintf("cannot delete role %s: %d user(s) still assigned", role.Name, count),
				Err:     ErrRoleInUse,
			}
		}

		if err := scope.Roles.Delete(ctx, role.ID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrRoleNotFound
			}
			return fmt.Errorf("delete role: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, role.Name)

	s.publish(ctx, "deleted", domain.RoleChangedEvent{
		RoleID:     role.ID,
		RoleName:   role.Name,
		ActorID:    actorID,
		OccurredAt: s.now().UTC(),
	})

	s.logger.Info("custom role deleted",
		zap.String("role_id", role.ID),
		zap.String("role", role.Name),
		zap.String("actor_id", actorID),
	)

	return nil
}

// ActivePermissions returns the permission set of an active custom role, or
// ErrRoleNotFound. Built-in roles are not consulted.
func (s *RoleService) ActivePermissions(ctx context.Context, roleName string) (domain.PermissionSet, error) {
	var (
		generation int64
		fill       bool
	)
	if s.cache != nil {
		set, ok, err := s.cache.Get(ctx, roleName)
		switch {
		case err != nil:
			s.logger.Warn("permission cache read failed", zap.String("role", roleName), zap.Error(err))
		case ok:
			return set, nil
		default:
			// Read before the store so a concurrent invalidation voids this fill.
			generation, err = s.cache.Generation(ctx, roleName)
			if err != nil {
				s.logger.Warn("permission cache generation read failed", zap.String("role", roleName), zap.Error(err))
			} else {
				fill = true
			}
		}
	}

	role, err := s.roles.GetActiveByName(ctx, roleName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("lookup role %q: %w", roleName, err)
	}

	set := role.Permissions.Clone()
	if fill {
		stored, err := s.cache.Set(ctx, roleName, generation, set)
		switch {
		case err != nil:
			s.logger.Warn("permission cache write failed", zap.String("role", roleName), zap.Error(err))
		case !stored:
			s.logger.Debug("permission cache fill discarded after invalidation", zap.String("role", roleName))
		}
	}

	return set, nil
}

// ResolvePermissions returns the permission set for a role name: the built-in
// table entry when the name is built-in, else the active custom role's set.
func (s *RoleService) ResolvePermissions(ctx context.Context, roleName string) (EffectivePermissions, error) {
	roleName = strings.TrimSpace(roleName)
	if roleName == "" {
		return EffectivePermissions{}, apperr.Validation("role name is required")
	}

	if set, ok := s.builtin.Lookup(roleName); ok {
		return EffectivePermissions{Role: roleName, Source: domain.RoleSourceBuiltin, Permissions: set}, nil
	}

	set, err := s.ActivePermissions(ctx, roleName)
	if err != nil {
		return EffectivePermissions{}, err
	}

	return EffectivePermissions{Role: roleName, Source: domain.RoleSourceCustom, Permissions: set}, nil
}

// RoleExists reports whether roleName is built-in or an active custom role.
func (s *RoleService) RoleExists(ctx context.Context, roleName string) (bool, error) {
	if s.builtin.IsBuiltin(roleName) {
		return true, nil
	}
	if _, err := s.roles.GetActiveByName(ctx, roleName); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("lookup role %q: %w", roleName, err)
	}
	return true, nil
}

func (s *RoleService) ensureNameAvailable(ctx context.Context, name, excludeID string) error {
	if s.builtin.IsBuiltin(name) {
		return ErrRoleNameReserved
	}

	existing, err := s.roles.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("lookup role by name: %w", err)
	}
	if existing != nil && existing.ID != excludeID {
		return ErrRoleExists
	}
	return nil
}

// invalidate runs after the store write has committed, so a failure is
// logged rather than returned; cached entries then expire after the cache TTL.
func (s *RoleService) invalidate(ctx context.Context, names ...string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, names...); err != nil {
		s.logger.Error("permission cache invalidation failed", zap.Strings("roles", names), zap.Error(err))
	}
}

func (s *RoleService) withRoleLock(ctx context.Context, roleName string, fn func(ctx context.Context, scope port.RoleScope) error) error {
	if s.locker == nil {
		return fn(ctx, port.RoleScope{Roles: s.roles, Users: s.users})
	}
	return s.locker.WithRoleLock(ctx, roleName, fn)
}

func (s *RoleService) warnUnknownCapabilities(roleName string, set domain.PermissionSet) {
	if unknown := domain.UnknownCapabilities(set); len(unknown) > 0 {
		s.logger.Warn("role carries unrecognised capabilities",
			zap.String("role", roleName),
			zap.Strings("capabilities", unknown),
		)
	}
}

func (s *RoleService) publish(ctx context.Context, action string, event domain.RoleChangedEvent) {
	if s.events == nil {
		return
	}

	event.EventID = uuid.NewString()

	var err error
	switch action {
	case "created":
		err = s.events.PublishRoleCreated(ctx, event)
	case "updated":
		err = s.events.PublishRoleUpdated(ctx, event)
	case "deleted":
		err = s.events.PublishRoleDeleted(ctx, event)
	}
	if err != nil {
		s.logger.Warn("publish role event failed",
			zap.String("action", action),
			zap.String("role", event.RoleName),
			zap.Error(err),
		)
	}
}
