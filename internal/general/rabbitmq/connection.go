package rabbitmq

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"transport-connect/internal/general/config"
	"transport-connect/internal/general/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

// Client owns one AMQP connection and a confirm-mode publishing channel.
// A background watcher redials and re-declares topology after failures.
type Client struct {
	url    string
	log    *logger.Logger
	logCtx context.Context

	mu      sync.RWMutex
	conn    *amqp.Connection
	pubChan *amqp.Channel

	pubMu       sync.Mutex
	pubConfirms chan amqp.Confirmation

	closeOnce sync.Once
	closed    chan struct{}
	reconnect chan struct{}
}

// URL builds the broker address from config. Credentials are escaped.
func URL(cfg *config.Config) string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(cfg.RabbitMQ.User, cfg.RabbitMQ.Password),
		Host:   cfg.RabbitMQ.Host + ":" + strconv.Itoa(cfg.RabbitMQ.Port),
		Path:   "/",
	}
	return u.String()
}

// Dial connects once and starts the reconnect watcher.
func Dial(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Client, error) {
	c := &Client{
		url:       URL(cfg),
		log:       log,
		logCtx:    context.WithoutCancel(ctx),
		closed:    make(chan struct{}),
		reconnect: make(chan struct{}, 1),
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	go c.watch()
	return c, nil
}

// Close stops the watcher and releases the connection. Safe to call twice.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.closed) })

	c.mu.Lock()
	if c.pubChan != nil {
		_ = c.pubChan.Close()
		c.pubChan = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	c.pubMu.Lock()
	c.pubConfirms = nil
	c.pubMu.Unlock()
}

// Ready reports whether the connection is currently usable.
func (c *Client) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed() && c.pubChan != nil && !c.pubChan.IsClosed()
}

func (c *Client) connect() (err error) {
	conn, err := amqp.DialConfig(c.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(30 * time.Second),
	})
	if err != nil {
		c.log.Error(c.logCtx, "rabbitmq_dial_failed", "Failed to dial RabbitMQ", err, nil)
		return fmt.Errorf("rabbitmq: dial: %w", err)
	}
	defer func() {
		if err != nil {
			_ = conn.Close()
		}
	}()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq: open channel: %w", err)
	}
	if err = declareTopology(ch); err != nil {
		c.log.Error(c.logCtx, "rabbitmq_topology_failed", "Failed to declare topology", err, nil)
		return fmt.Errorf("rabbitmq: topology: %w", err)
	}
	if err = ch.Confirm(false); err != nil {
		return fmt.Errorf("rabbitmq: enable confirms: %w", err)
	}

	confirms := ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	go c.logReturns(ch.NotifyReturn(make(chan amqp.Return, 1)))

	c.pubMu.Lock()
	c.pubConfirms = confirms
	c.pubMu.Unlock()

	c.mu.Lock()
	if c.pubChan != nil && !c.pubChan.IsClosed() {
		_ = c.pubChan.Close()
	}
	c.conn, c.pubChan = conn, ch
	c.mu.Unlock()

	go c.awaitClose(conn, ch)

	c.log.Info(c.logCtx, "rabbitmq_connected", "RabbitMQ connection established", nil)
	return nil
}

// logReturns reports unroutable publishes until the channel goes away.
func (c *Client) logReturns(returns <-chan amqp.Return) {
	for r := range returns {
		c.log.Warn(c.logCtx, "rabbitmq_returned", "Message returned as unroutable",
			fmt.Errorf("code=%d text=%s", r.ReplyCode, r.ReplyText),
			map[string]any{"exchange": r.Exchange, "routing_key": r.RoutingKey, "size": len(r.Body)})
	}
}

func (c *Client) awaitClose(conn *amqp.Connection, ch *amqp.Channel) {
	connClosed := conn.NotifyClose(make(chan *amqp.Error, 1))
	chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))
	select {
	case <-c.closed:
		return
	case <-connClosed:
	case <-chClosed:
	}
	select {
	case c.reconnect <- struct{}{}:
	default:
	}
}

func (c *Client) watch() {
	for {
		select {
		case <-c.closed:
			return
		case <-c.reconnect:
		}

		backoff := minBackoff
		for {
			select {
			case <-c.closed:
				return
			default:
			}
			err := c.connect()
			if err == nil {
				c.log.Info(c.logCtx, "rabbitmq_reconnected", "Reconnected and re-declared topology", nil)
				break
			}
			c.log.Warn(c.logCtx, "rabbitmq_retry", "Reconnect attempt failed", err,
				map[string]any{"backoff": backoff.String()})

			select {
			case <-c.closed:
				return
			case <-time.After(backoff):
			}
			backoff = nextBackoff(backoff)
		}
	}
}

// nextBackoff doubles d up to maxBackoff.
func nextBackoff(d time.Duration) time.Duration {
	if d < minBackoff {
		return minBackoff
	}
	d *= 2
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
