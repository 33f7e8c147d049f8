package port

import (
	"context"

	"github.com/gtaroom/GTA-GAME-sub003/internal/core/domain"
)

// EventPublisher publishes RBAC domain events to the message bus.
type EventPublisher interface {
	PublishRoleCreated(ctx context.Context, event domain.RoleChangedEvent) error
	PublishRoleUpdated(ctx context.Context, event domain.RoleChangedEvent) error
	PublishRoleDeleted(ctx context.Context, event domain.RoleChangedEvent) error
	PublishUserRoleAssigned(ctx context.Context, event domain.UserRoleAssignedEvent) error
}
