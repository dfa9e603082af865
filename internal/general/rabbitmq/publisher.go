package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

var (
	ErrNotConnected = errors.New("rabbitmq: connection is not open")
	ErrNacked       = errors.New("rabbitmq: publish not acknowledged")
)

const publishTimeout = 5 * time.Second

// Publisher adapts Client to the ports.Publisher interface.
type Publisher struct {
	client *Client
}

func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Publish sends body and waits for the broker confirm.
func (p *Publisher) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	return p.client.Publish(ctx, exchange, routingKey, body)
}

// PublishJSON marshals v and publishes it.
func (p *Publisher) PublishJSON(ctx context.Context, exchange, routingKey string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal %s: %w", routingKey, err)
	}
	return p.client.Publish(ctx, exchange, routingKey, body)
}

// Publish sends a persistent JSON message with mandatory routing and waits
// for its confirm. Publishes are serialized so confirms stay aligned.
func (c *Client) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	c.mu.RLock()
	ch, conn := c.pubChan, c.conn
	c.mu.RUnlock()
	if conn == nil || conn.IsClosed() || ch == nil || ch.IsClosed() {
		return ErrNotConnected
	}

	c.pubMu.Lock()
	defer c.pubMu.Unlock()
	confirms := c.pubConfirms
	if confirms == nil {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := ch.PublishWithContext(ctx, exchange, routingKey, true, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq: publish %s/%s: %w", exchange, routingKey, err)
	}

	select {
	case conf, ok := <-confirms:
		if !ok {
			return ErrNotConnected
		}
		if !conf.Ack {
			return ErrNacked
		}
		return nil
	case <-ctx.Done():
		// drain the pending confirm so the next publish reads its own
		select {
		case <-confirms:
		case <-time.After(2 * time.Second):
		}
		return ctx.Err()
	}
}
