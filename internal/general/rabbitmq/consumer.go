package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrPoison marks a delivery that can never succeed; it is dropped, not requeued.
var ErrPoison = errors.New("rabbitmq: poison message")

// Handler processes one delivery. nil acks, an error wrapping ErrPoison
// nacks without requeue, any other error nacks with one redelivery.
type Handler func(ctx context.Context, d amqp.Delivery) error

const handlerTimeout = 30 * time.Second

func (c *Client) consumerChannel(prefetch int) (*amqp.Channel, error) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil || conn.IsClosed() {
		return nil, ErrNotConnected
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: open channel: %w", err)
	}
	if prefetch < 1 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("rabbitmq: qos(prefetch=%d): %w", prefetch, err)
	}
	return ch, nil
}

// Consume reads queue with manual acks until ctx is done or the channel
// closes. Callers loop on it to survive reconnects.
func (c *Client) Consume(ctx context.Context, queue, tag string, prefetch int, handle Handler) error {
	ch, err := c.consumerChannel(prefetch)
	if err != nil {
		return err
	}
	defer ch.Close()

	deliveries, err := ch.Consume(queue, tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq: consume %s: %w", queue, err)
	}
	chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))

	for {
		select {
		case <-ctx.Done():
			if tag != "" {
				_ = ch.Cancel(tag, false)
			}
			return nil
		case cerr := <-chClosed:
			if cerr != nil {
				return fmt.Errorf("rabbitmq: channel closed while consuming %s: %w", queue, cerr)
			}
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			hctx, cancel := context.WithTimeout(ctx, handlerTimeout)
			err := handle(hctx, d)
			cancel()
			settle(d, d.Redelivered, err)
		}
	}
}

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// settle acks or nacks d. Transient failures are requeued only on first delivery.
func settle(d acknowledger, redelivered bool, err error) {
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, ErrPoison) || redelivered:
		_ = d.Nack(false, false)
	default:
		_ = d.Nack(false, true)
	}
}

// ConsumeLoop keeps Consume running across channel failures until ctx ends.
func (c *Client) ConsumeLoop(ctx context.Context, queue, tag string, prefetch int, handle Handler) {
	backoff := minBackoff
	for {
		err := c.Consume(ctx, queue, tag, prefetch, handle)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.log.Warn(c.logCtx, "rabbitmq_consume_interrupted", "Consumer stopped; retrying", err,
				map[string]any{"queue": queue, "backoff": backoff.String()})
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = nextBackoff(backoff)
	}
}
