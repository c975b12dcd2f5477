package events

import (
	"context"
	"encoding/json"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/slotable/service-booking/internal/domain/catalog"
	"github.com/slotable/service-booking/internal/platform/kafka"
)

// CatalogEventConsumer keeps the local service-catalog replica current by
// listening to catalog events from the catalog service.
type CatalogEventConsumer struct {
	consumer *kafka.Consumer
	services catalog.Repository
	logger   *zap.Logger
}

// NewCatalogEventConsumer creates a new CatalogEventConsumer.
func NewCatalogEventConsumer(
	brokers []string,
	groupID string,
	services catalog.Repository,
	logger *zap.Logger,
) *CatalogEventConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, TopicCatalogEvents, logger)
	return &CatalogEventConsumer{
		consumer: consumer,
		services: services,
		logger:   logger,
	}
}

// Start begins consuming catalog events. This blocks until the context is cancelled.
func (c *CatalogEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *CatalogEventConsumer) Close() error {
	return c.consumer.Close()
}

func (c *CatalogEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	var cloudEvent kafka.CloudEvent
	if err := json.Unmarshal(msg.Value, &cloudEvent); err != nil {
		c.logger.Error("failed to parse cloud event from catalog topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}

	switch cloudEvent.Type {
	case ServiceCreated, ServiceUpdated:
		return c.handleServiceUpserted(ctx, cloudEvent)
	case ServiceDeactivated:
		return c.handleServiceDeactivated(ctx, cloudEvent)
	default:
		c.logger.Debug("ignoring unhandled catalog event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

func (c *CatalogEventConsumer) handleServiceUpserted(ctx context.Context, cloudEvent kafka.CloudEvent) error {
	var evt ServiceUpsertedEvent
	if err := cloudEvent.ParseData(&evt); err != nil {
		c.logger.Error("failed to parse ServiceUpsertedEvent data", zap.Error(err))
		return nil // Don't retry malformed data
	}

	svc := &catalog.Service{
		ID:         evt.ServiceID,
		ProviderID: evt.ProviderID,
		Name:       evt.Name,
		PriceCents: evt.PriceCents,
		Currency:   evt.Currency,
		Active:     evt.Active,
		UpdatedAt:  evt.OccurredAt,
	}
	if err := c.services.Upsert(ctx, svc); err != nil {
		c.logger.Error("failed to upsert catalog replica",
			zap.String("service_id", evt.ServiceID.String()),
			zap.Error(err),
		)
		return err
	}

	c.logger.Info("catalog replica updated",
		zap.String("service_id", evt.ServiceID.String()),
		zap.Bool("active", evt.Active),
	)
	return nil
}

func (c *CatalogEventConsumer) handleServiceDeactivated(ctx context.Context, cloudEvent kafka.CloudEvent) error {
	var evt ServiceDeactivatedEvent
	if err := cloudEvent.ParseData(&evt); err != nil {
		c.logger.Error("failed to parse ServiceDeactivatedEvent data", zap.Error(err))
		return nil
	}

	if err := c.services.Deactivate(ctx, evt.ServiceID); err != nil {
		c.logger.Error("failed to deactivate catalog replica entry",
			zap.String("service_id", evt.ServiceID.String()),
			zap.Error(err),
		)
		return err
	}
	return nil
}
