package notification

import (
	"errors"
	"strings"
	"time"

	"transport-connect/internal/domain/user"
)

// Kind names the event a notification is about.
type Kind string

const (
	KindNewMessage   Kind = "new_message"
	KindStatusUpdate Kind = "request_status_update"
	KindSystem       Kind = "system"
)

// Channel is a delivery path.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
	ChannelSMS   Channel = "sms"
)

// Priority mirrors message priority on the notification side.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// DefaultKeepPerUser caps how many notifications are retained for one user.
const DefaultKeepPerUser = 100

var (
	ErrEmptyRecipient = errors.New("notification recipient is required")
	ErrEmptyTitle     = errors.New("notification title is required")
)

// Intent is a request to notify someone. It crosses the broker as JSON.
type Intent struct {
	UserID    string         `json:"userId"`
	Kind      Kind           `json:"type"`
	Title     string         `json:"title"`
	Body      string         `json:"message"`
	RequestID string         `json:"requestId,omitempty"`
	Priority  Priority       `json:"priority"`
	Data      map[string]any `json:"data,omitempty"`
}

// Validate normalizes defaults and checks required fields.
func (in *Intent) Validate() error {
	in.UserID = strings.TrimSpace(in.UserID)
	in.Title = strings.TrimSpace(in.Title)
	if in.UserID == "" {
		return ErrEmptyRecipient
	}
	if in.Title == "" {
		return ErrEmptyTitle
	}
	if in.Kind == "" {
		in.Kind = KindSystem
	}
	if in.Priority == "" {
		in.Priority = PriorityNormal
	}
	return nil
}

// Notification is a delivered (stored) intent.
type Notification struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	Kind      Kind           `json:"type"`
	Title     string         `json:"title"`
	Body      string         `json:"message"`
	RequestID string         `json:"requestId,omitempty"`
	Priority  Priority       `json:"priority"`
	Data      map[string]any `json:"data,omitempty"`
	Channels  []Channel      `json:"channels"`
	ReadAt    *time.Time     `json:"readAt,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// FromIntent materializes an intent for the given channels.
func FromIntent(id string, in Intent, channels []Channel, now time.Time) *Notification {
	return &Notification{
		ID:        id,
		UserID:    in.UserID,
		Kind:      in.Kind,
		Title:     in.Title,
		Body:      in.Body,
		RequestID: in.RequestID,
		Priority:  in.Priority,
		Data:      in.Data,
		Channels:  channels,
		CreatedAt: now.UTC(),
	}
}

// ChannelsFor picks delivery channels from preferences. In-app is always
// used; SMS additionally requires a high or urgent priority.
func ChannelsFor(prefs user.NotificationPrefs, p Priority) []Channel {
	out := []Channel{ChannelInApp}
	if prefs.Email {
		out = append(out, ChannelEmail)
	}
	if prefs.Push {
		out = append(out, ChannelPush)
	}
	if prefs.SMS && (p == PriorityHigh || p == PriorityUrgent) {
		out = append(out, ChannelSMS)
	}
	return out
}

// MarkRead sets ReadAt once.
func (n *Notification) MarkRead(at time.Time) bool {
	if n.ReadAt != nil {
		return false
	}
	t := at.UTC()
	n.ReadAt = &t
	return true
}
