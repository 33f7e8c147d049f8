package port

import (
	"context"

	"github.com/gtaroom/GTA-GAME-sub003/internal/core/domain"
)

// PermissionCache stores resolved custom-role permission sets keyed by role
// name. Every Invalidate bumps the role's generation; a fill read under an
// older generation is discarded by Set.
type PermissionCache interface {
	Get(ctx context.Context, roleName string) (domain.PermissionSet, bool, error)
	// Generation returns the current invalidation counter for roleName.
	Generation(ctx context.Context, roleName string) (int64, error)
	// Set stores set only while roleName is still at generation and reports
	// whether it was written.
	Set(ctx context.Context, roleName string, generation int64, set domain.PermissionSet) (bool, error)
	Invalidate(ctx context.Context, roleNames ...string) error
}
