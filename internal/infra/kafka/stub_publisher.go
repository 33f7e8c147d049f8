package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/gtaroom/GTA-GAME-sub003/internal/core/domain"
	"github.com/gtaroom/GTA-GAME-sub003/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Used when no
// brokers are configured.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a logging event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, actorID string, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	base := []zap.Field{
		zap.String("event_type", eventType),
		zap.String("actor_id", actorID),
		zap.Time("timestamp", at.UTC()),
	}
	p.logger.Info("stub event published", append(base, fields...)...)
}

func roleFields(event domain.RoleChangedEvent) []zap.Field {
	return []zap.Field{
		zap.String("role_id", event.RoleID),
		zap.String("role_name", event.RoleName),
		zap.String("previous_name", event.PreviousName),
		zap.Strings("granted", event.Permissions.Granted()),
		zap.Bool("is_active", event.IsActive),
	}
}

// PublishRoleCreated logs role.created events.
func (p *StubPublisher) PublishRoleCreated(_ context.Context, event domain.RoleChangedEvent) error {
	p.logEvent(EventRoleCreated, event.ActorID, event.OccurredAt, roleFields(event)...)
	return nil
}

// PublishRoleUpdated logs role.updated events.
func (p *StubPublisher) PublishRoleUpdated(_ context.Context, event domain.RoleChangedEvent) error {
	p.logEvent(EventRoleUpdated, event.ActorID, event.OccurredAt, roleFields(event)...)
	return nil
}

// PublishRoleDeleted logs role.deleted events.
func (p *StubPublisher) PublishRoleDeleted(_ context.Context, event domain.RoleChangedEvent) error {
	p.logEvent(EventRoleDeleted, event.ActorID, event.OccurredAt, roleFields(event)...)
	return nil
}

// PublishUserRoleAssigned logs user.role.assigned events.
func (p *StubPublisher) PublishUserRoleAssigned(_ context.Context, event domain.UserRoleAssignedEvent) error {
	p.logEvent(EventUserRoleAssigned, event.AssignedBy, event.AssignedAt,
		zap.String("role_name", event.RoleName),
		zap.Int("user_count", len(event.UserIDs)),
		zap.Int64("modified_count", event.ModifiedCount),
		zap.Int("total_requested", event.TotalRequested),
	)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
