package service

import (
	"context"

	"transport-connect/internal/domain/notification"
	"transport-connect/internal/domain/user"
	"transport-connect/internal/general/logger"
)

// Provider sends a stored notification over one external channel.
type Provider interface {
	Send(ctx context.Context, to *user.User, n *notification.Notification) error
}

// LogProvider records the delivery in the log instead of calling a gateway.
type LogProvider struct {
	Channel notification.Channel
	Logger  *logger.Logger
}

func (p LogProvider) Send(ctx context.Context, to *user.User, n *notification.Notification) error {
	details := map[string]any{
		"channel":         string(p.Channel),
		"notification_id": n.ID,
		"title":           n.Title,
		"priority":        string(n.Priority),
	}
	switch p.Channel {
	case notification.ChannelEmail:
		details["address"] = to.Email
	case notification.ChannelSMS:
		details["phone"] = to.Phone
	}
	p.Logger.Info(ctx, "notification_sent", "Notification handed to channel", details)
	return nil
}

// LogProviders returns a log-backed provider for every external channel.
func LogProviders(l *logger.Logger) map[notification.Channel]Provider {
	return map[notification.Channel]Provider{
		notification.ChannelEmail: LogProvider{Channel: notification.ChannelEmail, Logger: l},
		notification.ChannelPush:  LogProvider{Channel: notification.ChannelPush, Logger: l},
		notification.ChannelSMS:   LogProvider{Channel: notification.ChannelSMS, Logger: l},
	}
}
