package ports

import (
	"context"
	"time"

	"transport-connect/internal/domain/geo"
	"transport-connect/internal/domain/message"
	"transport-connect/internal/domain/notification"
	"transport-connect/internal/domain/request"
	"transport-connect/internal/domain/user"
	"transport-connect/internal/general/realtime"
)

// Publisher is the broker side of the system (RabbitMQ in production).
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
}

// Notifier accepts notification intents without blocking the caller.
type Notifier interface {
	Notify(ctx context.Context, in notification.Intent)
}

// NotificationSink performs the actual hand-off of one intent.
type NotificationSink interface {
	Deliver(ctx context.Context, in notification.Intent) error
}

// ----- DTOs for the chat service -----

// SendMessageInput is the validated content of a send_message event.
type SendMessageInput struct {
	RequestID   string
	Content     string
	Type        string
	Priority    string
	ReplyTo     string
	Location    *geo.Point
	Attachments []message.Attachment
}

// UpdateStatusInput is the content of a request_status_update event.
type UpdateStatusInput struct {
	RequestID string
	Status    string
	Note      string
	Location  *geo.Point
}

// JoinResult is returned by JoinConversation: the room and its recent
// history, oldest first.
type JoinResult struct {
	RequestID string             `json:"requestId"`
	Messages  []*message.Message `json:"messages"`
}

// ReadResult reports which messages got a new receipt.
type ReadResult struct {
	RequestID  string    `json:"requestId"`
	ReadBy     string    `json:"readBy"`
	MessageIDs []string  `json:"messageIds"`
	ReadAt     time.Time `json:"readAt"`
}

// HistoryPage is one page of conversation history, newest first.
type HistoryPage struct {
	RequestID string             `json:"requestId"`
	Messages  []*message.Message `json:"messages"`
	Page      int                `json:"page"`
	Limit     int                `json:"limit"`
	Total     int                `json:"total"`
	HasMore   bool               `json:"hasMore"`
}

// Overview is the admin snapshot of the realtime layer.
type Overview struct {
	Timestamp time.Time `json:"timestamp"`
	Metrics   struct {
		OnlineUsers         int `json:"onlineUsers"`
		ActiveConversations int `json:"activeConversations"`
	} `json:"metrics"`
	LongestIdle []realtime.Presence `json:"longestIdle"`
}

// ChatService is the realtime conversation and status core.
type ChatService interface {
	// session lifecycle
	ResolveIdentity(ctx context.Context, userID string, role user.Role) (user.Identity, error)
	Connect(ctx context.Context, who user.Identity, peer realtime.Peer)
	Disconnect(ctx context.Context, who user.Identity, connID string)
	Heartbeat(who user.Identity)
	RunPresenceSweeper(ctx context.Context)

	// conversation
	JoinConversation(ctx context.Context, who user.Identity, requestID string) (JoinResult, error)
	LeaveConversation(ctx context.Context, who user.Identity, requestID string) error
	SendMessage(ctx context.Context, who user.Identity, in SendMessageInput) (*message.Message, error)
	MarkRead(ctx context.Context, who user.Identity, requestID string, messageIDs []string) (ReadResult, error)
	MarkConversationRead(ctx context.Context, who user.Identity, requestID string) (ReadResult, error)
	EditMessage(ctx context.Context, who user.Identity, messageID, content string) (*message.Message, error)
	DeleteMessage(ctx context.Context, who user.Identity, messageID string) (*message.Message, error)
	AddReaction(ctx context.Context, who user.Identity, messageID, emoji string) (*message.Message, error)
	RemoveReaction(ctx context.Context, who user.Identity, messageID, emoji string) (*message.Message, error)

	// ephemeral signaling
	TypingStart(ctx context.Context, who user.Identity, requestID string) error
	TypingStop(ctx context.Context, who user.Identity, requestID string) error
	ShareLocation(ctx context.Context, who user.Identity, requestID string, at geo.Point) error

	// lifecycle
	UpdateStatus(ctx context.Context, who user.Identity, in UpdateStatusInput) (*request.Request, error)

	// queries
	History(ctx context.Context, who user.Identity, requestID string, page, limit int) (HistoryPage, error)
	Search(ctx context.Context, who user.Identity, requestID, query string) ([]*message.Message, error)
	UnreadCount(ctx context.Context, who user.Identity, requestID string) (int, error)
	OnlineUsers(ctx context.Context, who user.Identity) ([]realtime.Presence, error)
	Overview(ctx context.Context, who user.Identity) (Overview, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// NotificationService stores and delivers notifications.
type NotificationService interface {
	Deliver(ctx context.Context, in notification.Intent) error
	List(ctx context.Context, who user.Identity, limit int) ([]*notification.Notification, error)
	MarkRead(ctx context.Context, who user.Identity, id string) error
}
