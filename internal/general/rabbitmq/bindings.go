package rabbitmq

import (
	"fmt"

	"transport-connect/internal/general/contracts"

	amqp "github.com/rabbitmq/amqp091-go"
)

type exchangeDecl struct {
	name string
	kind string
}

type bindingDecl struct {
	queue      string
	exchange   string
	routingKey string
}

// topology is the broker layout both services agree on.
var topology = struct {
	exchanges []exchangeDecl
	queues    []string
	bindings  []bindingDecl
}{
	exchanges: []exchangeDecl{
		{contracts.ExchangeRequestTopic, amqp.ExchangeTopic},
		{contracts.ExchangeNotificationTopic, amqp.ExchangeTopic},
	},
	queues: []string{
		contracts.QueueRequestStatus,
		contracts.QueueNotifications,
	},
	bindings: []bindingDecl{
		{contracts.QueueRequestStatus, contracts.ExchangeRequestTopic, contracts.RouteRequestStatusPrefix + "*"},
		{contracts.QueueNotifications, contracts.ExchangeNotificationTopic, contracts.RouteNotificationPrefix + "#"},
	},
}

func declareTopology(ch *amqp.Channel) error {
	for _, ex := range topology.exchanges {
		if err := ch.ExchangeDeclare(ex.name, ex.kind, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}
	for _, q := range topology.queues {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
	}
	for _, b := range topology.bindings {
		if err := ch.QueueBind(b.queue, b.routingKey, b.exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s (%s): %w", b.queue, b.exchange, b.routingKey, err)
		}
	}
	return nil
}
