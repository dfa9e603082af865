package ports

import (
	"context"
	"errors"
	"time"

	"transport-connect/internal/domain/message"
	"transport-connect/internal/domain/notification"
	"transport-connect/internal/domain/request"
	"transport-connect/internal/domain/user"
)

var (
	// ErrNotFound is returned by repositories when a row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrStaleState is returned when a conditional update lost a race.
	ErrStaleState = errors.New("record changed concurrently")
)

// UnitOfWork interface is used to manage transactions across multiple repository operations.
// Repository methods must be called inside WithinTx.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// UserRepository reads identities. The realtime core never writes users
// outside of seeding.
type UserRepository interface {
	CreateUser(ctx context.Context, u *user.User) error
	GetByID(ctx context.Context, id string) (*user.User, error)
}

// RequestRepository reads shipment requests and applies status changes.
type RequestRepository interface {
	CreateRequest(ctx context.Context, r *request.Request) error
	GetByID(ctx context.Context, id string) (*request.Request, error)
	// GetForUpdate locks the row for the rest of the transaction.
	GetForUpdate(ctx context.Context, id string) (*request.Request, error)
	// UpdateStatus writes r.Status and appends entry, but only if the stored
	// status is still from. Otherwise ErrStaleState.
	UpdateStatus(ctx context.Context, r *request.Request, from request.Status, entry request.TimelineEntry) error
	TouchLastMessage(ctx context.Context, id string, at time.Time) error
}

// MessageRepository is the ordered, soft-deletable conversation log.
type MessageRepository interface {
	// Create assigns ID and Seq.
	Create(ctx context.Context, m *message.Message) error
	GetByID(ctx context.Context, id string) (*message.Message, error)
	GetForUpdate(ctx context.Context, id string) (*message.Message, error)
	// Update persists the mutable fields of m.
	Update(ctx context.Context, m *message.Message) error
	// Recent returns up to limit messages of a request, newest first, deleted included.
	Recent(ctx context.Context, requestID string, limit int) ([]*message.Message, error)
	// Page returns non-deleted messages newest first, plus the total count.
	Page(ctx context.Context, requestID string, offset, limit int) ([]*message.Message, int, error)
	// Unread returns non-deleted messages of a request that reader did not send and has not read.
	Unread(ctx context.Context, requestID, reader string) ([]*message.Message, error)
	UnreadCount(ctx context.Context, requestID, reader string) (int, error)
	// Search matches text content case-insensitively among non-deleted text messages.
	Search(ctx context.Context, requestID, query string, limit int) ([]*message.Message, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// NotificationRepository stores delivered notifications, capped per user.
type NotificationRepository interface {
	Save(ctx context.Context, n *notification.Notification, keepPerUser int) error
	ListForUser(ctx context.Context, userID string, limit int) ([]*notification.Notification, error)
	MarkRead(ctx context.Context, userID, id string, at time.Time) error
}
