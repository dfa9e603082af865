package contracts

import "transport-connect/internal/domain/notification"

// NotificationMessage carries one intent to the notification service.
// Routing key: "notification.{kind}" on ExchangeNotificationTopic.
type NotificationMessage struct {
	Intent notification.Intent `json:"intent"`
	Envelope
}
