package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"transport-connect/internal/domain/notification"
	"transport-connect/internal/general/contracts"
	"transport-connect/internal/ports"
)

// BrokerSink forwards intents to the notification exchange, where the
// notification service picks them up.
type BrokerSink struct {
	pub      ports.Publisher
	producer string
}

var _ ports.NotificationSink = (*BrokerSink)(nil)

func NewBrokerSink(pub ports.Publisher, producer string) *BrokerSink {
	return &BrokerSink{pub: pub, producer: producer}
}

// RoutingKey is the key an intent of kind k is published under.
func RoutingKey(k notification.Kind) string {
	return contracts.RouteNotificationPrefix + string(k)
}

func (s *BrokerSink) Deliver(ctx context.Context, in notification.Intent) error {
	body, err := json.Marshal(contracts.NotificationMessage{
		Intent: in,
		Envelope: contracts.Envelope{
			CorrelationID: correlationID(),
			Producer:      s.producer,
			SentAt:        time.Now().UTC(),
		},
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return s.pub.Publish(ctx, contracts.ExchangeNotificationTopic, RoutingKey(in.Kind), body)
}

func correlationID() string {
	var b [6]byte
	_, _ = rand.Read(b[:])
	return "ntf_" + hex.EncodeToString(b[:])
}
