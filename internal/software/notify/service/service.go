package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"transport-connect/internal/domain/notification"
	"transport-connect/internal/domain/user"
	"transport-connect/internal/general/apperr"
	"transport-connect/internal/general/logger"
	"transport-connect/internal/general/metrics"
	"transport-connect/internal/ports"

	"github.com/google/uuid"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Options tunes the notification store.
type Options struct {
	KeepPerUser int
	Clock       func() time.Time
}

type notificationService struct {
	logger        *logger.Logger
	uow           ports.UnitOfWork
	users         ports.UserRepository
	notifications ports.NotificationRepository
	providers     map[notification.Channel]Provider
	opts          Options
}

// NewNotificationService wires the delivery side. Channels without a
// provider are recorded on the notification but not sent anywhere.
func NewNotificationService(
	logger *logger.Logger,
	uow ports.UnitOfWork,
	users ports.UserRepository,
	notifications ports.NotificationRepository,
	providers map[notification.Channel]Provider,
	opts Options,
) ports.NotificationService {
	if opts.KeepPerUser <= 0 {
		opts.KeepPerUser = notification.DefaultKeepPerUser
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &notificationService{
		logger:        logger,
		uow:           uow,
		users:         users,
		notifications: notifications,
		providers:     providers,
		opts:          opts,
	}
}

// Deliver stores the intent for its recipient and hands it to every channel
// the recipient's preferences allow.
func (service *notificationService) Deliver(ctx context.Context, in notification.Intent) error {
	if err := in.Validate(); err != nil {
		return apperr.Validation(err.Error(), err)
	}
	ctx = service.logger.WithUserID(ctx, in.UserID)
	if in.RequestID != "" {
		ctx = service.logger.WithShipmentID(ctx, in.RequestID)
	}

	var (
		recipient *user.User
		stored    *notification.Notification
	)
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		u, err := service.users.GetByID(ctx, in.UserID)
		if err != nil {
			return err
		}
		channels := notification.ChannelsFor(u.Preferences, in.Priority)
		n := notification.FromIntent(uuid.NewString(), in, channels, service.opts.Clock())
		if err := service.notifications.Save(ctx, n, service.opts.KeepPerUser); err != nil {
			return err
		}
		recipient, stored = u, n
		return nil
	})
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return apperr.NotFound("user", err)
		}
		return apperr.Persistence("failed to store notification", err)
	}
	metrics.NotificationsDelivered.WithLabelValues(string(notification.ChannelInApp), "ok").Inc()

	for _, ch := range stored.Channels {
		if ch == notification.ChannelInApp {
			continue
		}
		p, ok := service.providers[ch]
		if !ok {
			continue
		}
		if err := p.Send(ctx, recipient, stored); err != nil {
			metrics.NotificationsDelivered.WithLabelValues(string(ch), "failed").Inc()
			service.logger.Error(ctx, "notification_channel_failed", "Channel delivery failed", err,
				map[string]any{"channel": string(ch), "notification_id": stored.ID})
			continue
		}
		metrics.NotificationsDelivered.WithLabelValues(string(ch), "ok").Inc()
	}

	service.logger.Info(ctx, "notification_delivered", "Notification stored and dispatched", map[string]any{
		"notification_id": stored.ID,
		"type":            string(stored.Kind),
		"channels":        stored.Channels,
	})
	return nil
}

// List returns who's newest notifications.
func (service *notificationService) List(ctx context.Context, who user.Identity, limit int) ([]*notification.Notification, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	var out []*notification.Notification
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		out, err = service.notifications.ListForUser(ctx, who.ID, limit)
		return err
	})
	if err != nil {
		return nil, apperr.Persistence("failed to load notifications", err)
	}
	if out == nil {
		out = []*notification.Notification{}
	}
	return out, nil
}

// MarkRead marks one of who's notifications read. Other users' ids look missing.
func (service *notificationService) MarkRead(ctx context.Context, who user.Identity, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperr.Validation("notification id is required", nil)
	}
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		return service.notifications.MarkRead(ctx, who.ID, id, service.opts.Clock())
	})
	switch {
	case errors.Is(err, ports.ErrNotFound):
		return apperr.NotFound("notification", err)
	case err != nil:
		return apperr.Persistence("failed to update notification", err)
	}
	return nil
}
