package rabbitmq

import (
	"errors"
	"testing"
	"time"

	"transport-connect/internal/general/config"
	"transport-connect/internal/general/contracts"

	"github.com/stretchr/testify/assert"
)

func TestURLEscapesCredentials(t *testing.T) {
	var cfg config.Config
	cfg.RabbitMQ.User = "guest"
	cfg.RabbitMQ.Password = "p@ss"
	cfg.RabbitMQ.Host = "mq"
	cfg.RabbitMQ.Port = 5672
	assert.Equal(t, "amqp://guest:p%40ss@mq:5672/", URL(&cfg))
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, minBackoff, nextBackoff(0))
	assert.Equal(t, 2*time.Second, nextBackoff(time.Second))
	assert.Equal(t, maxBackoff, nextBackoff(20*time.Second))
	assert.Equal(t, maxBackoff, nextBackoff(maxBackoff))
}

type fakeAck struct {
	acked, requeued, dropped int
}

func (f *fakeAck) Ack(bool) error { f.acked++; return nil }

func (f *fakeAck) Nack(_, requeue bool) error {
	if requeue {
		f.requeued++
	} else {
		f.dropped++
	}
	return nil
}

func TestSettle(t *testing.T) {
	cases := []struct {
		name        string
		redelivered bool
		err         error
		want        fakeAck
	}{
		{"ok", false, nil, fakeAck{acked: 1}},
		{"poison", false, errors.Join(ErrPoison, errors.New("bad json")), fakeAck{dropped: 1}},
		{"transient first try", false, errors.New("db busy"), fakeAck{requeued: 1}},
		{"transient redelivered", true, errors.New("db busy"), fakeAck{dropped: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var f fakeAck
			settle(&f, tc.redelivered, tc.err)
			assert.Equal(t, tc.want, f)
		})
	}
}

func TestTopologyRoutesBothQueues(t *testing.T) {
	routes := map[string]string{}
	for _, b := range topology.bindings {
		routes[b.queue] = b.exchange + " " + b.routingKey
	}
	assert.Equal(t, contracts.ExchangeRequestTopic+" request.status.*", routes[contracts.QueueRequestStatus])
	assert.Equal(t, contracts.ExchangeNotificationTopic+" notification.#", routes[contracts.QueueNotifications])
	assert.Len(t, topology.exchanges, 2)
}
