package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gtaroom/GTA-GAME-sub003/internal/core/domain"
	"github.com/gtaroom/GTA-GAME-sub003/internal/transport/http/middleware"
	"github.com/gtaroom/GTA-GAME-sub003/internal/usecase"
)

// RoleAssigner is the assignment surface the HTTP layer uses.
type RoleAssigner interface {
	AssignRole(ctx context.Context, actorID, userID, roleName string) (*domain.User, error)
	BulkAssignRole(ctx context.Context, actorID string, userIDs []string, roleName string) (usecase.BulkAssignResult, error)
	ListUsersByRole(ctx context.Context, roleName string, page, limit int) (usecase.UserPage, error)
}

// UserHandler serves role assignment and self-inspection endpoints.
type UserHandler struct {
	assignments RoleAssigner
	roles       RoleCatalog
}

func NewUserHandler(assignments RoleAssigner, roles RoleCatalog) *UserHandler {
	return &UserHandler{assignments: assignments, roles: roles}
}

// AssignRole sets one user's role.
func (h *UserHandler) AssignRole(c *gin.Context) {
	actor, err := actorID(c)
	if err != nil {
		RespondError(c, err)
		return
	}

	var req AssignRoleRequest
	if err := bindJSON(c, &req); err != nil {
		RespondError(c, err)
		return
	}

	user, err := h.assignments.AssignRole(c.Request.Context(), actor, c.Param("id"), req.Role)
	if err != nil {
		RespondError(c, err)
		return
	}
	respond(c, http.StatusOK, "role assigned", newUserPayload(*user))
}

// BulkAssignRole sets the role of every listed user that exists.
func (h *UserHandler) BulkAssignRole(c *gin.Context) {
	actor, err := actorID(c)
	if err != nil {
		RespondError(c, err)
		return
	}

	var req BulkAssignRequest
	if err := bindJSON(c, &req); err != nil {
		RespondError(c, err)
		return
	}

	result, err := h.assignments.BulkAssignRole(c.Request.Context(), actor, req.UserIDs, req.Role)
	if err != nil {
		RespondError(c, err)
		return
	}
	respond(c, http.StatusOK, "roles assigned", BulkAssignPayload{
		Role:           result.Role,
		ModifiedCount:  result.ModifiedCount,
		TotalRequested: result.TotalRequested,
	})
}

// MyPermissions returns the caller's effective permissions. A role that no
// longer resolves yields an empty set rather than an error.
func (h *UserHandler) MyPermissions(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	if principal == nil {
		RespondError(c, usecase.ErrUnauthenticated)
		return
	}

	effective, err := h.roles.ResolvePermissions(c.Request.Context(), principal.Role)
	if err != nil {
		if !errors.Is(err, usecase.ErrRoleNotFound) {
			RespondError(c, err)
			return
		}
		effective = usecase.EffectivePermissions{Role: principal.Role, Permissions: domain.PermissionSet{}}
	}
	respond(c, http.StatusOK, "permissions retrieved", newEffectivePayload(effective))
}
