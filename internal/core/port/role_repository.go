package port

import (
	"context"

	"github.com/gtaroom/GTA-GAME-sub003/internal/core/domain"
)

// RoleRepository handles custom role persistence.
type RoleRepository interface {
	Create(ctx context.Context, role domain.Role) error
	GetByID(ctx context.Context, id string) (*domain.Role, error)
	// GetByName matches active and inactive roles.
	GetByName(ctx context.Context, name string) (*domain.Role, error)
	GetActiveByName(ctx context.Context, name string) (*domain.Role, error)
	ListActive(ctx context.Context) ([]domain.Role, error)
	Update(ctx context.Context, role domain.Role) error
	Delete(ctx context.Context, id string) error
}

// RoleScope carries repositories bound to a single transaction.
type RoleScope struct {
	Roles RoleRepository
	Users UserRepository
}

// RoleLocker runs fn in one transaction holding an exclusive lock on
// roleName. Role deletion and role assignment lock the same name.
type RoleLocker interface {
	WithRoleLock(ctx context.Context, roleName string, fn func(ctx context.Context, scope RoleScope) error) error
}
