package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"transport-connect/internal/domain/notification"
	"transport-connect/internal/general/contracts"
	"transport-connect/internal/general/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	got     []notification.Intent
}

func (s *blockingSink) Deliver(_ context.Context, in notification.Intent) error {
	<-s.release
	s.mu.Lock()
	s.got = append(s.got, in)
	s.mu.Unlock()
	return nil
}

func (s *blockingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func TestDispatcherDropsWhenFullAndDrainsOnShutdown(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(logger.Discard(), sink, 2, 1)
	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	in := intent("x", notification.PriorityNormal)
	d.Notify(ctx, in) // taken by the worker, which blocks
	require.Eventually(t, func() bool { return len(d.queue) == 0 }, time.Second, 5*time.Millisecond)
	d.Notify(ctx, in)
	d.Notify(ctx, in)
	d.Notify(ctx, in) // queue full: dropped
	assert.Len(t, d.queue, 2)

	d.Notify(ctx, notification.Intent{}) // invalid: dropped

	cancel()
	close(sink.release)
	d.Wait()
	assert.Equal(t, 3, sink.count())

	d.Notify(context.Background(), in) // after shutdown: dropped, no panic
}

type capturePublisher struct {
	exchange, key string
	body          []byte
}

func (p *capturePublisher) Publish(_ context.Context, exchange, key string, body []byte) error {
	p.exchange, p.key, p.body = exchange, key, body
	return nil
}

func TestBrokerSinkPublishesToNotificationExchange(t *testing.T) {
	pub := &capturePublisher{}
	sink := NewBrokerSink(pub, contracts.ProducerChat)

	require.NoError(t, sink.Deliver(context.Background(), intent("New message", notification.PriorityHigh)))
	assert.Equal(t, contracts.ExchangeNotificationTopic, pub.exchange)
	assert.Equal(t, "notification.new_message", pub.key)

	var msg contracts.NotificationMessage
	require.NoError(t, json.Unmarshal(pub.body, &msg))
	assert.Equal(t, "New message", msg.Intent.Title)
	assert.Equal(t, contracts.ProducerChat, msg.Producer)
	assert.NotEmpty(t, msg.CorrelationID)
}
