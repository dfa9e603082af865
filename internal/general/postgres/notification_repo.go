package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"transport-connect/internal/domain/notification"
	"transport-connect/internal/ports"
)

// NotificationRepo keeps the newest notifications of each user.
type NotificationRepo struct{}

func NewNotificationRepo() ports.NotificationRepository {
	return &NotificationRepo{}
}

// Save inserts n and trims the user's backlog to keepPerUser rows.
func (repo *NotificationRepo) Save(ctx context.Context, n *notification.Notification, keepPerUser int) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}
	channels, err := json.Marshal(n.Channels)
	if err != nil {
		return fmt.Errorf("marshal channels: %w", err)
	}
	var data *string
	if n.Data != nil {
		b, err := json.Marshal(n.Data)
		if err != nil {
			return fmt.Errorf("marshal data: %w", err)
		}
		s := string(b)
		data = &s
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO notifications (id, user_id, kind, title, body, request_id, priority, data, channels, read_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		n.ID, n.UserID, string(n.Kind), n.Title, n.Body, n.RequestID, string(n.Priority),
		data, string(channels), n.ReadAt, n.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	if keepPerUser > 0 {
		if _, err := tx.Exec(ctx, `
			DELETE FROM notifications
			WHERE user_id = $1 AND id NOT IN (
				SELECT id FROM notifications WHERE user_id = $1
				ORDER BY created_at DESC, id DESC
				LIMIT $2
			)
		`, n.UserID, keepPerUser); err != nil {
			return fmt.Errorf("trim notifications: %w", err)
		}
	}
	return nil
}

func (repo *NotificationRepo) ListForUser(ctx context.Context, userID string, limit int) ([]*notification.Notification, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
		SELECT id, user_id, kind, title, body, request_id, priority, data, channels, read_at, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []*notification.Notification
	for rows.Next() {
		var (
			n                    notification.Notification
			kind, priority       string
			dataRaw, channelsRaw []byte
		)
		if err := rows.Scan(&n.ID, &n.UserID, &kind, &n.Title, &n.Body, &n.RequestID, &priority,
			&dataRaw, &channelsRaw, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Kind = notification.Kind(kind)
		n.Priority = notification.Priority(priority)
		if len(dataRaw) > 0 {
			if err := json.Unmarshal(dataRaw, &n.Data); err != nil {
				return nil, fmt.Errorf("decode data: %w", err)
			}
		}
		if len(channelsRaw) > 0 {
			if err := json.Unmarshal(channelsRaw, &n.Channels); err != nil {
				return nil, fmt.Errorf("decode channels: %w", err)
			}
		}
		out = append(out, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

func (repo *NotificationRepo) MarkRead(ctx context.Context, userID, id string, at time.Time) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
		UPDATE notifications SET read_at = COALESCE(read_at, $3)
		WHERE id = $1 AND user_id = $2
	`, id, userID, at)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}
