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

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// RoleChecker reports whether a role name is assignable.
type RoleChecker interface {
	RoleExists(ctx context.Context, roleName string) (bool, error)
}

// BulkAssignResult reports how many of the requested users were modified.
type BulkAssignResult struct {
	Role           string
	ModifiedCount  int64
	TotalRequested int
}

// UserPage is a page of users holding a role.
type UserPage struct {
	Users      []domain.User
	Total      int
	Page       int
	Limit      int
	TotalPages int
}

// AssignmentService changes user role strings and lists users by role.
type AssignmentService struct {
	users  port.UserRepository
	roles  RoleChecker
	locker port.RoleLocker
	events port.EventPublisher
	logger *zap.Logger
	now    func() time.Time
}

// NewAssignmentService constructs an AssignmentService.
func NewAssignmentService(users port.UserRepository, roles RoleChecker) *AssignmentService {
	return &AssignmentService{
		users:  users,
		roles:  roles,
		logger: zap.NewNop(),
		now:    time.Now,
	}
}

// WithRoleLocker makes assignment check and write under the same role-name
// lock that DeleteRole takes.
func (s *AssignmentService) WithRoleLocker(locker port.RoleLocker) *AssignmentService {
	s.locker = locker
	return s
}

// WithEventPublisher enables assignment events.
func (s *AssignmentService) WithEventPublisher(events port.EventPublisher) *AssignmentService {
	s.events = events
	return s
}

// WithLogger attaches a logger.
func (s *AssignmentService) WithLogger(logger *zap.Logger) *AssignmentService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// AssignRole overwrites a single user's role.
func (s *AssignmentService) AssignRole(ctx context.Context, actorID, userID, roleName string) (*domain.User, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return nil, ErrUnauthenticated
	}

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperr.Validation("user id is required")
	}

	role := domain.NormalizeRoleName(roleName)
	if role == "" {
		return nil, apperr.Validation("role name is required")
	}

	var user *domain.User
	err := s.withRoleLock(ctx, role, func(ctx context.Context, users port.UserRepository) error {
		if err := s.ensureRoleExists(ctx, role); err != nil {
			return err
		}

		found, err := users.GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("lookup user: %w", err)
		}

		if err := users.UpdateRole(ctx, found.ID, role); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("update user role: %w", err)
		}
		user = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	previous := user.Role
	user.Role = role
	user.UpdatedAt = s.now().UTC()

	s.logger.Info("user role assigned",
		zap.String("user_id", user.ID),
		zap.String("previous_role", previous),
		zap.String("role", role),
		zap.String("actor_id", actorID),
	)

	s.publish(ctx, domain.UserRoleAssignedEvent{
		UserIDs:        []string{user.ID},
		RoleName:       role,
		AssignedBy:     actorID,
		AssignedAt:     user.UpdatedAt,
		ModifiedCount:  1,
		TotalRequested: 1,
	})

	return user, nil
}

// BulkAssignRole assigns one role to many users in a single batched update.
// Unknown user ids are not counted and are not an error.
func (s *AssignmentService) BulkAssignRole(ctx context.Context, actorID string, userIDs []string, roleName string) (BulkAssignResult, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return BulkAssignResult{}, ErrUnauthenticated
	}

	requested := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			requested = append(requested, trimmed)
		}
	}
	if len(requested) == 0 {
		return BulkAssignResult{}, apperr.Validation("at least one user id is required")
	}

	role := domain.NormalizeRoleName(roleName)
	if role == "" {
		return BulkAssignResult{}, apperr.Validation("role name is required")
	}

	unique := make([]string, 0, len(requested))
	seen := make(map[string]struct{}, len(requested))
	for _, id := range requested {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	var modified int64
	err := s.withRoleLock(ctx, role, func(ctx context.Context, users port.UserRepository) error {
		if err := s.ensureRoleExists(ctx, role); err != nil {
			return err
		}

		count, err := users.BulkUpdateRole(ctx, unique, role)
		if err != nil {
			return fmt.Errorf("bulk update user roles: %w", err)
		}
		modified = count
		return nil
	})
	if err != nil {
		return BulkAssignResult{}, err
	}

	result := BulkAssignResult{
		Role:           role,
		ModifiedCount:  modified,
		TotalRequested: len(requested),
	}

	s.logger.Info("bulk role assignment",
		zap.String("role", role),
		zap.Int64("modified", modified),
		zap.Int("requested", len(requested)),
		zap.String("actor_id", actorID),
	)

	s.publish(ctx, domain.UserRoleAssignedEvent{
		UserIDs:        unique,
		RoleName:       role,
		AssignedBy:     actorID,
		AssignedAt:     s.now().UTC(),
		ModifiedCount:  modified,
		TotalRequested: len(requested),
	})

	return result, nil
}

// ListUsersByRole returns a newest-first page of users holding exactly roleName.
func (s *AssignmentService) ListUsersByRole(ctx context.Context, roleName string, page, limit int) (UserPage, error) {
	roleName = strings.TrimSpace(roleName)
	if roleName == "" {
		return UserPage{}, apperr.Validation("role name is required")
	}

	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	total, err := s.users.CountByRole(ctx, roleName)
	if err != nil {
		return UserPage{}, fmt.Errorf("count users by role: %w", err)
	}

	users, err := s.users.ListByRole(ctx, port.UserFilter{
		Role:   roleName,
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		return UserPage{}, fmt.Errorf("list users by role: %w", err)
	}

	return UserPage{
		Users:      users,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

func (s *AssignmentService) ensureRoleExists(ctx context.Context, role string) error {
	exists, err := s.roles.RoleExists(ctx, role)
	if err != nil {
		return err
	}
	if !exists {
		return apperr.Newf(apperr.KindNotFound, "role %s not found", role)
	}
	return nil
}

func (s *AssignmentService) withRoleLock(ctx context.Context, role string, fn func(ctx context.Context, users port.UserRepository) error) error {
	if s.locker == nil {
		return fn(ctx, s.users)
	}
	return s.locker.WithRoleLock(ctx, role, func(ctx context.Context, scope port.RoleScope) error {
		return fn(ctx, scope.Users)
	})
}

func (s *AssignmentService) publish(ctx context.Context, event domain.UserRoleAssignedEvent) {
	if s.events == nil {
		return
	}
	event.EventID = uuid.NewString()
	if err := s.events.PublishUserRoleAssigned(ctx, event); err != nil {
		s.logger.Warn("publish role assignment event failed", zap.String("role", event.RoleName), zap.Error(err))
	}
}
