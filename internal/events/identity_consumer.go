package events

import (
	"context"
	"encoding/json"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/slotable/service-booking/internal/domain/identity"
	"github.com/slotable/service-booking/internal/platform/kafka"
)

// IdentityEventConsumer keeps the local contact replica current by listening
// to user events from the identity service. The notification dispatcher
// resolves delivery addresses from this replica.
type IdentityEventConsumer struct {
	consumer *kafka.Consumer
	contacts identity.ContactRepository
	logger   *zap.Logger
}

// NewIdentityEventConsumer creates a new IdentityEventConsumer.
func NewIdentityEventConsumer(
	brokers []string,
	groupID string,
	contacts identity.ContactRepository,
	logger *zap.Logger,
) *IdentityEventConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, TopicIdentityEvents, logger)
	return &IdentityEventConsumer{
		consumer: consumer,
		contacts: contacts,
		logger:   logger,
	}
}

// Start begins consuming identity events. This blocks until the context is cancelled.
func (c *IdentityEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *IdentityEventConsumer) Close() error {
	return c.consumer.Close()
}

func (c *IdentityEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	var cloudEvent kafka.CloudEvent
	if err := json.Unmarshal(msg.Value, &cloudEvent); err != nil {
		c.logger.Error("failed to parse cloud event from identity topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}

	switch cloudEvent.Type {
	case UserCreated, UserUpdated:
		return c.handleUserUpserted(ctx, cloudEvent)
	default:
		c.logger.Debug("ignoring unhandled identity event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

func (c *IdentityEventConsumer) handleUserUpserted(ctx context.Context, cloudEvent kafka.CloudEvent) error {
	var evt UserUpsertedEvent
	if err := cloudEvent.ParseData(&evt); err != nil {
		c.logger.Error("failed to parse UserUpsertedEvent data", zap.Error(err))
		return nil
	}

	contact := &identity.Contact{
		UserID:      evt.UserID,
		Email:       evt.Email,
		DisplayName: evt.DisplayName,
		UpdatedAt:   evt.OccurredAt,
	}
	if err := c.contacts.Upsert(ctx, contact); err != nil {
		c.logger.Error("failed to upsert contact replica",
			zap.String("user_id", evt.UserID.String()),
			zap.Error(err),
		)
		return err
	}
	return nil
}
