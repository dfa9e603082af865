package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"transport-connect/internal/domain/notification"
	"transport-connect/internal/domain/user"
	"transport-connect/internal/general/apperr"
	"transport-connect/internal/general/contracts"
	"transport-connect/internal/general/logger"
	"transport-connect/internal/general/memstore"
	"transport-connect/internal/general/rabbitmq"
	"transport-connect/internal/ports"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProvider struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (p *recordingProvider) Send(_ context.Context, to *user.User, n *notification.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, to.ID+":"+n.Title)
	return p.err
}

type fixture struct {
	store *memstore.Store
	svc   ports.NotificationService
	email *recordingProvider
	sms   *recordingProvider
}

func newFixture(t *testing.T, keep int) *fixture {
	t.Helper()
	store := memstore.New()
	require.NoError(t, memstore.Seed(context.Background(), store))
	f := &fixture{store: store, email: &recordingProvider{}, sms: &recordingProvider{}}
	f.svc = NewNotificationService(logger.Discard(), store.UnitOfWork(), store.Users(), store.Notifications(),
		map[notification.Channel]Provider{
			notification.ChannelEmail: f.email,
			notification.ChannelSMS:   f.sms,
		}, Options{KeepPerUser: keep, Clock: func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }})
	return f
}

var shipper = user.Identity{ID: memstore.DemoShipperID, Role: user.RoleShipper}

func intent(title string, p notification.Priority) notification.Intent {
	return notification.Intent{
		UserID:    memstore.DemoShipperID,
		Kind:      notification.KindNewMessage,
		Title:     title,
		Body:      "Dana Driver sent you a message",
		RequestID: memstore.DemoRequestID,
		Priority:  p,
	}
}

func TestDeliverStoresAndUsesPreferredChannels(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	require.NoError(t, f.svc.Deliver(ctx, intent("New message", notification.PriorityUrgent)))

	list, err := f.svc.List(ctx, shipper, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	// seeded accounts opt into email and push only
	assert.Equal(t, []notification.Channel{notification.ChannelInApp, notification.ChannelEmail, notification.ChannelPush}, list[0].Channels)
	assert.Equal(t, []string{memstore.DemoShipperID + ":New message"}, f.email.sent)
	assert.Empty(t, f.sms.sent)
}

func TestDeliverKeepsNewestPerUser(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	for _, title := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, f.svc.Deliver(ctx, intent(title, notification.PriorityNormal)))
	}
	list, err := f.svc.List(ctx, shipper, 50)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestDeliverFailures(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	err := f.svc.Deliver(ctx, notification.Intent{UserID: memstore.DemoShipperID})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	in := intent("x", notification.PriorityNormal)
	in.UserID = "nobody"
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(f.svc.Deliver(ctx, in)))

	// channel failures do not fail the delivery
	f.email.err = errors.New("smtp down")
	assert.NoError(t, f.svc.Deliver(ctx, intent("y", notification.PriorityNormal)))
}

func TestMarkRead(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	require.NoError(t, f.svc.Deliver(ctx, intent("hello", notification.PriorityNormal)))
	list, err := f.svc.List(ctx, shipper, 0)
	require.NoError(t, err)
	id := list[0].ID

	driver := user.Identity{ID: memstore.DemoDriverID, Role: user.RoleDriver}
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(f.svc.MarkRead(ctx, driver, id)))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(f.svc.MarkRead(ctx, shipper, " ")))

	require.NoError(t, f.svc.MarkRead(ctx, shipper, id))
	list, err = f.svc.List(ctx, shipper, 0)
	require.NoError(t, err)
	assert.NotNil(t, list[0].ReadAt)
}

func TestConsumerSettlement(t *testing.T) {
	f := newFixture(t, 0)
	c := NewConsumer(logger.Discard(), f.svc)
	ctx := context.Background()

	err := c.HandleNotification(ctx, amqp.Delivery{Body: []byte("{broken")})
	assert.ErrorIs(t, err, rabbitmq.ErrPoison)

	in := intent("x", notification.PriorityNormal)
	in.UserID = "nobody"
	body, _ := json.Marshal(contracts.NotificationMessage{Intent: in})
	assert.ErrorIs(t, c.HandleNotification(ctx, amqp.Delivery{Body: body}), rabbitmq.ErrPoison)

	body, _ = json.Marshal(contracts.NotificationMessage{
		Intent:   intent("ok", notification.PriorityNormal),
		Envelope: contracts.Envelope{CorrelationID: "ntf_1", Producer: contracts.ProducerChat},
	})
	require.NoError(t, c.HandleNotification(ctx, amqp.Delivery{Body: body}))
	list, err := f.svc.List(ctx, shipper, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	status, _ := json.Marshal(contracts.RequestStatusMessage{RequestID: memstore.DemoRequestID, Status: "accepted"})
	assert.NoError(t, c.HandleStatus(ctx, amqp.Delivery{Body: status}))
	assert.ErrorIs(t, c.HandleStatus(ctx, amqp.Delivery{Body: []byte("nope")}), rabbitmq.ErrPoison)
}
