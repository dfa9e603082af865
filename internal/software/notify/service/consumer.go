package service

import (
	"context"
	"encoding/json"
	"fmt"

	"transport-connect/internal/general/apperr"
	"transport-connect/internal/general/contracts"
	"transport-connect/internal/general/logger"
	"transport-connect/internal/general/rabbitmq"
	"transport-connect/internal/ports"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer turns broker deliveries into notification deliveries.
type Consumer struct {
	logger *logger.Logger
	svc    ports.NotificationService
}

func NewConsumer(logger *logger.Logger, svc ports.NotificationService) *Consumer {
	return &Consumer{logger: logger, svc: svc}
}

// Run consumes both queues until ctx ends.
func (c *Consumer) Run(ctx context.Context, client *rabbitmq.Client, prefetch int) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		client.ConsumeLoop(ctx, contracts.QueueRequestStatus, "notification-service-status", prefetch, c.HandleStatus)
	}()
	client.ConsumeLoop(ctx, contracts.QueueNotifications, "notification-service", prefetch, c.HandleNotification)
	<-done
}

// HandleNotification delivers one NotificationMessage. Undecodable or
// unaddressable messages are poison.
func (c *Consumer) HandleNotification(ctx context.Context, d amqp.Delivery) error {
	var msg contracts.NotificationMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		c.logger.Error(ctx, "mq_message_parse_failed", "Failed to parse notification", err,
			map[string]any{"routing_key": d.RoutingKey})
		return fmt.Errorf("%w: %v", rabbitmq.ErrPoison, err)
	}
	if msg.CorrelationID != "" {
		ctx = c.logger.WithRequestID(ctx, msg.CorrelationID)
	}

	err := c.svc.Deliver(ctx, msg.Intent)
	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindNotFound:
		c.logger.Warn(ctx, "notification_rejected", "Dropping undeliverable notification", err,
			map[string]any{"routing_key": d.RoutingKey})
		return fmt.Errorf("%w: %v", rabbitmq.ErrPoison, err)
	default:
		return err
	}
}

// HandleStatus records committed request status changes.
func (c *Consumer) HandleStatus(ctx context.Context, d amqp.Delivery) error {
	var msg contracts.RequestStatusMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		c.logger.Error(ctx, "mq_message_parse_failed", "Failed to parse status event", err,
			map[string]any{"routing_key": d.RoutingKey})
		return fmt.Errorf("%w: %v", rabbitmq.ErrPoison, err)
	}
	if msg.CorrelationID != "" {
		ctx = c.logger.WithRequestID(ctx, msg.CorrelationID)
	}
	ctx = c.logger.WithShipmentID(ctx, msg.RequestID)
	c.logger.Info(ctx, "request_status_observed", "Request status changed", map[string]any{
		"from":       msg.PreviousStatus,
		"to":         msg.Status,
		"updated_by": msg.UpdatedBy,
		"producer":   msg.Producer,
	})
	return nil
}
