package port

import (
	"context"

	"github.com/gtaroom/GTA-GAME-sub003/internal/core/domain"
)

// UserFilter scopes user listings by role with offset pagination.
type UserFilter struct {
	Role   string
	Limit  int
	Offset int
}

// UserRepository exposes the user operations the RBAC core depends on.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	UpdateRole(ctx context.Context, id string, role string) error
	// BulkUpdateRole returns how many rows were actually modified.
	BulkUpdateRole(ctx context.Context, ids []string, role string) (int64, error)
	CountByRole(ctx context.Context, role string) (int, error)
	ListByRole(ctx context.Context, filter UserFilter) ([]domain.User, error)
}
