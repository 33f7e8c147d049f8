package domain

import "time"

// RoleChangedEvent represents rbac.role.created / updated / deleted messages.
type RoleChangedEvent struct {
	EventID      string
	RoleID       string
	RoleName     string
	PreviousName string
	Permissions  PermissionSet
	IsActive     bool
	ActorID      string
	OccurredAt   time.Time
}

// UserRoleAssignedEvent represents rbac.user.role.assigned messages.
type UserRoleAssignedEvent struct {
	EventID        string
	UserIDs        []string
	RoleName       string
	AssignedBy     string
	AssignedAt     time.Time
	ModifiedCount  int64
	TotalRequested int
}
