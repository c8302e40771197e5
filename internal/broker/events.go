package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"market-service/internal/models"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher publishes market events keyed by listing id
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// ListingCreated publishes a ListingCreated event
func (ep *EventPublisher) ListingCreated(ctx context.Context, event *models.ListingCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, listingKey(event.ListingID.String()), event)
}

// ListingSold publishes a ListingSold event
func (ep *EventPublisher) ListingSold(ctx context.Context, event *models.ListingSoldEvent) error {
	return ep.producer.PublishEvent(ctx, listingKey(event.ListingID.String()), event)
}

// ListingExpired publishes a ListingExpired event
func (ep *EventPublisher) ListingExpired(ctx context.Context, event *models.ListingExpiredEvent) error {
	return ep.producer.PublishEvent(ctx, listingKey(event.ListingID.String()), event)
}

func listingKey(id string) string {
	return fmt.Sprintf("listing-%s", id)
}

// EventHandler routes consumed market events to registered callbacks
type EventHandler struct {
	logger        *zap.Logger
	onListingSold func(context.Context, *models.ListingSoldEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler(logger *zap.Logger) *EventHandler {
	return &EventHandler{logger: logger}
}

// OnListingSold registers a handler for ListingSold events
func (eh *EventHandler) OnListingSold(handler func(context.Context, *models.ListingSoldEvent) error) {
	eh.onListingSold = handler
}

// HandleMessage routes messages to the appropriate handler
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("event_type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeListingSold:
		if eh.onListingSold != nil {
			var event models.ListingSoldEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ListingSold event: %w", err)
			}
			return eh.onListingSold(ctx, &event)
		}

	default:
		// ListingCreated and ListingExpired are for external consumers.
	}

	return nil
}
