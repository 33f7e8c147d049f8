package usecase

import (
	"errors"

	"github.com/gtaroom/GTA-GAME-sub003/internal/apperr"
)

var (
	// ErrRoleExists indicates a role with the provided name already exists.
	ErrRoleExists = apperr.Conflict("role already exists")
	// ErrRoleNameReserved indicates the name collides with a built-in role.
	ErrRoleNameReserved = apperr.Conflict("role name is reserved for a built-in role")
	// ErrRoleNotFound indicates the role id or name does not resolve.
	ErrRoleNotFound = apperr.NotFound("role not found")
	// ErrRoleInUse is wrapped by delete refusals while users still hold the role.
	ErrRoleInUse = errors.New("role is still assigned to users")
	// ErrUserNotFound indicates the user id does not resolve.
	ErrUserNotFound = apperr.NotFound("user not found")
	// ErrUnauthenticated indicates no principal was resolved upstream.
	ErrUnauthenticated = apperr.Unauthorized("authentication required")
	// ErrPermissionDenied is the generic forbidden error.
	ErrPermissionDenied = apperr.Forbidden("insufficient permissions")
)
