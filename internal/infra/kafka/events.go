package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/gtaroom/GTA-GAME-sub003/internal/core/domain"
	"github.com/gtaroom/GTA-GAME-sub003/internal/core/port"
	"github.com/gtaroom/GTA-GAME-sub003/internal/infra/config"
)

const schemaVersion = "1.0"

// Event types. The topic is the event type with the configured prefix.
const (
	EventRoleCreated      = "role.created"
	EventRoleUpdated      = "role.updated"
	EventRoleDeleted      = "role.deleted"
	EventUserRoleAssigned = "user.role.assigned"
)

// EventPublisher implements port.EventPublisher on top of Producer.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type eventEnvelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	ActorID   string            `json:"actor_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Payload   any               `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type rolePayload struct {
	RoleID       string          `json:"role_id"`
	RoleName     string          `json:"role_name"`
	PreviousName string          `json:"previous_name,omitempty"`
	Permissions  map[string]bool `json:"permissions,omitempty"`
	IsActive     bool            `json:"is_active"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

type assignmentPayload struct {
	UserIDs        []string  `json:"user_ids"`
	RoleName       string    `json:"role_name"`
	ModifiedCount  int64     `json:"modified_count"`
	TotalRequested int       `json:"total_requested"`
	AssignedAt     time.Time `json:"assigned_at"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, key, actorID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	if eventID == "" {
		eventID = uuid.NewString()
	}

	metadata := map[string]string{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	envelope := eventEnvelope{
		EventID:   eventID,
		EventType: eventType,
		ActorID:   actorID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(bytes),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(eventType)},
			{Key: []byte("event_id"), Value: []byte(eventID)},
		},
	}

	if err := p.producer.Send(ctx, message); err != nil {
		p.logger.Warn("failed to publish event",
			zap.String("event_type", eventType),
			zap.String("event_id", eventID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func roleEventPayload(event domain.RoleChangedEvent) rolePayload {
	var perms map[string]bool
	if len(event.Permissions) > 0 {
		perms = map[string]bool(event.Permissions.Clone())
	}
	return rolePayload{
		RoleID:       event.RoleID,
		RoleName:     event.RoleName,
		PreviousName: event.PreviousName,
		Permissions:  perms,
		IsActive:     event.IsActive,
		OccurredAt:   event.OccurredAt.UTC(),
	}
}

// PublishRoleCreated publishes role.created events keyed by role id.
func (p *EventPublisher) PublishRoleCreated(ctx context.Context, event domain.RoleChangedEvent) error {
	return p.publish(ctx, event.EventID, EventRoleCreated, event.RoleID, event.ActorID, event.OccurredAt, roleEventPayload(event))
}

// PublishRoleUpdated publishes role.updated events keyed by role id.
func (p *EventPublisher) PublishRoleUpdated(ctx context.Context, event domain.RoleChangedEvent) error {
	return p.publish(ctx, event.EventID, EventRoleUpdated, event.RoleID, event.ActorID, event.OccurredAt, roleEventPayload(event))
}

// PublishRoleDeleted publishes role.deleted events keyed by role id.
func (p *EventPublisher) PublishRoleDeleted(ctx context.Context, event domain.RoleChangedEvent) error {
	return p.publish(ctx, event.EventID, EventRoleDeleted, event.RoleID, event.ActorID, event.OccurredAt, roleEventPayload(event))
}

// PublishUserRoleAssigned publishes user.role.assigned events keyed by role name.
func (p *EventPublisher) PublishUserRoleAssigned(ctx context.Context, event domain.UserRoleAssignedEvent) error {
	payload := assignmentPayload{
		UserIDs:        event.UserIDs,
		RoleName:       event.RoleName,
		ModifiedCount:  event.ModifiedCount,
		TotalRequested: event.TotalRequested,
		AssignedAt:     event.AssignedAt.UTC(),
	}
	return p.publish(ctx, event.EventID, EventUserRoleAssigned, event.RoleName, event.AssignedBy, event.AssignedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
