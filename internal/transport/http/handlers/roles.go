package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gtaroom/GTA-GAME-sub003/internal/apperr"
	"github.com/gtaroom/GTA-GAME-sub003/internal/core/domain"
	"github.com/gtaroom/GTA-GAME-sub003/internal/usecase"
)

// RoleCatalog is the role registry surface the HTTP layer uses.
type RoleCatalog interface {
	ListRoles(ctx context.Context) ([]domain.Role, error)
	GetRole(ctx context.Context, id string) (*domain.Role, error)
	CreateRole(ctx context.Context, actorID string, input usecase.CreateRoleInput) (*domain.Role, error)
	UpdateRole(ctx context.Context, actorID string, input usecase.UpdateRoleInput) (*domain.Role, error)
	DeleteRole(ctx context.Context, actorID, id string) error
	ResolvePermissions(ctx context.Context, roleName string) (usecase.EffectivePermissions, error)
	Builtin() domain.BuiltinTable
}

// RoleHandler serves the custom role endpoints.
type RoleHandler struct {
	roles       RoleCatalog
	assignments RoleAssigner
}

func NewRoleHandler(roles RoleCatalog, assignments RoleAssigner) *RoleHandler {
	return &RoleHandler{roles: roles, assignments: assignments}
}

// ListRoles returns active custom roles, newest first.
func (h *RoleHandler) ListRoles(c *gin.Context) {
	roles, err := h.roles.ListRoles(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}

	payload := make([]RolePayload, 0, len(roles))
	for _, role := range roles {
		payload = append(payload, newRolePayload(role))
	}
	respond(c, http.StatusOK, "roles retrieved", payload)
}

// GetRole returns one custom role by id.
func (h *RoleHandler) GetRole(c *gin.Context) {
	role, err := h.roles.GetRole(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	respond(c, http.StatusOK, "role retrieved", newRolePayload(*role))
}

// CreateRole provisions a custom role.
func (h *RoleHandler) CreateRole(c *gin.Context) {
	actor, err := actorID(c)
	if err != nil {
		RespondError(c, err)
		return
	}

	var req RoleCreateRequest
	if err := bindJSON(c, &req); err != nil {
		RespondError(c, err)
		return
	}

	permissions, err := parsePermissions(req.Permissions)
	if err != nil {
		RespondError(c, err)
		return
	}

	role, err := h.roles.CreateRole(c.Request.Context(), actor, usecase.CreateRoleInput{
		Name:        req.Name,
		Description: req.Description,
		Permissions: permissions,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "role created", newRolePayload(*role))
}

// UpdateRole applies a partial update.
func (h *RoleHandler) UpdateRole(c *gin.Context) {
	actor, err := actorID(c)
	if err != nil {
		RespondError(c, err)
		return
	}

	var req RoleUpdateRequest
	if err := bindJSON(c, &req); err != nil {
		RespondError(c, err)
		return
	}

	permissions, err := parsePermissions(req.Permissions)
	if err != nil {
		RespondError(c, err)
		return
	}

	role, err := h.roles.UpdateRole(c.Request.Context(), actor, usecase.UpdateRoleInput{
		ID:          c.Param("id"),
		Name:        req.Name,
		Description: req.Description,
		Permissions: permissions,
		IsActive:    req.IsActive,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	respond(c, http.StatusOK, "role updated", newRolePayload(*role))
}

// DeleteRole removes a custom role nobody holds.
func (h *RoleHandler) DeleteRole(c *gin.Context) {
	actor, err := actorID(c)
	if err != nil {
		RespondError(c, err)
		return
	}

	if err := h.roles.DeleteRole(c.Request.Context(), actor, c.Param("id")); err != nil {
		RespondError(c, err)
		return
	}
	respond(c, http.StatusOK, "role deleted", nil)
}

// Capabilities lists the known capability names and built-in roles for the
// role editor.
func (h *RoleHandler) Capabilities(c *gin.Context) {
	capabilities := make([]string, len(domain.KnownCapabilities))
	copy(capabilities, domain.KnownCapabilities)

	respond(c, http.StatusOK, "capabilities retrieved", CapabilitiesPayload{
		Capabilities: capabilities,
		BuiltinRoles: h.roles.Builtin().Names(),
	})
}

// RolePermissions returns the effective permission set of any role name.
func (h *RoleHandler) RolePermissions(c *gin.Context) {
	effective, err := h.roles.ResolvePermissions(c.Request.Context(), c.Param("name"))
	if err != nil {
		RespondError(c, err)
		return
	}
	respond(c, http.StatusOK, "permissions retrieved", newEffectivePayload(effective))
}

// UsersByRole pages through the users holding a role.
func (h *RoleHandler) UsersByRole(c *gin.Context) {
	page, err := queryInt(c, "page")
	if err != nil {
		RespondError(c, err)
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		RespondError(c, err)
		return
	}

	result, err := h.assignments.ListUsersByRole(c.Request.Context(), c.Param("name"), page, limit)
	if err != nil {
		RespondError(c, err)
		return
	}

	users := make([]UserPayload, 0, len(result.Users))
	for _, user := range result.Users {
		users = append(users, newUserPayload(user))
	}

	respond(c, http.StatusOK, "users retrieved", UserPagePayload{
		Users: users,
		Pagination: Pagination{
			Total:      result.Total,
			Page:       result.Page,
			Limit:      result.Limit,
			TotalPages: result.TotalPages,
		},
	})
}

// queryInt parses an optional positive integer query parameter; absent
// values yield zero so the service applies its default.
func queryInt(c *gin.Context, name string) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return 0, apperr.Newf(apperr.KindValidation, "%s must be a positive integer", name)
	}
	return value, nil
}
