package handlers

import (
	"time"

	"github.com/gtaroom/GTA-GAME-sub003/internal/core/domain"
	"github.com/gtaroom/GTA-GAME-sub003/internal/usecase"
)

// Envelope is the uniform success payload.
type Envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data,omitempty"`
	Message    string `json:"message"`
}

// ErrorResponse is the uniform error payload. trace_id correlates with logs.
type ErrorResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	TraceID    string `json:"trace_id,omitempty"`
}

// RolePayload describes a custom role.
type RolePayload struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Permissions map[string]bool `json:"permissions"`
	IsActive    bool            `json:"isActive"`
	CreatedBy   string          `json:"createdBy,omitempty"`
	UpdatedBy   string          `json:"updatedBy,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// RoleCreateRequest is the body of POST /roles. Permission values must be
// booleans; anything else is rejected.
type RoleCreateRequest struct {
	Name        string         `json:"name" binding:"required"`
	Description string         `json:"description" binding:"required"`
	Permissions map[string]any `json:"permissions"`
}

// RoleUpdateRequest is the body of PATCH /roles/:id. Omitted fields are left
// unchanged.
type RoleUpdateRequest struct {
	Name        *string        `json:"name"`
	Description *string        `json:"description"`
	Permissions map[string]any `json:"permissions"`
	IsActive    *bool          `json:"isActive"`
}

// EffectivePermissionsPayload is the {role, permissions} view of any role.
type EffectivePermissionsPayload struct {
	Role        string          `json:"role"`
	Source      string          `json:"source"`
	Superuser   bool            `json:"superuser"`
	Permissions map[string]bool `json:"permissions"`
	Granted     []string        `json:"granted"`
}

// CapabilitiesPayload lists known capability names and built-in roles.
type CapabilitiesPayload struct {
	Capabilities []string `json:"capabilities"`
	BuiltinRoles []string `json:"builtinRoles"`
}

// AssignRoleRequest is the body of PUT /users/:id/role.
type AssignRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// BulkAssignRequest is the body of POST /users/roles/bulk.
type BulkAssignRequest struct {
	UserIDs []string `json:"userIds" binding:"required"`
	Role    string   `json:"role" binding:"required"`
}

// BulkAssignPayload reports how many users changed.
type BulkAssignPayload struct {
	Role           string `json:"role"`
	ModifiedCount  int64  `json:"modifiedCount"`
	TotalRequested int    `json:"totalRequested"`
}

// UserPayload is the public view of a user.
type UserPayload struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Pagination describes a page of results.
type Pagination struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// UserPagePayload is a page of users holding a role.
type UserPagePayload struct {
	Users      []UserPayload `json:"users"`
	Pagination Pagination    `json:"pagination"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse describes readiness probe results with dependency checks.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

func newRolePayload(role domain.Role) RolePayload {
	return RolePayload{
		ID:          role.ID,
		Name:        role.Name,
		Description: role.Description,
		Permissions: map[string]bool(role.Permissions.Clone()),
		IsActive:    role.IsActive,
		CreatedBy:   role.CreatedBy,
		UpdatedBy:   role.UpdatedBy,
		CreatedAt:   role.CreatedAt,
		UpdatedAt:   role.UpdatedAt,
	}
}

func newEffectivePayload(effective usecase.EffectivePermissions) EffectivePermissionsPayload {
	return EffectivePermissionsPayload{
		Role:        effective.Role,
		Source:      string(effective.Source),
		Superuser:   effective.Role == domain.SuperuserRole,
		Permissions: map[string]bool(effective.Permissions.Clone()),
		Granted:     effective.Permissions.Granted(),
	}
}

func newUserPayload(user domain.User) UserPayload {
	return UserPayload{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
