package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"transport-connect/internal/domain/geo"
	"transport-connect/internal/domain/message"
	"transport-connect/internal/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// MessageRepo stores conversation messages. Nested collections live in
// JSONB columns; seq is a BIGSERIAL that gives a total order.
type MessageRepo struct{}

func NewMessageRepo() ports.MessageRepository {
	return &MessageRepo{}
}

const messageColumns = `
	id, seq, request_id, sender_id, content, kind, status, priority,
	read_by, attachments, location, reply_to, edit_history,
	is_edited, is_deleted, deleted_at, deleted_by, reactions, expires_at,
	created_at, updated_at`

// messageJSON holds the encoded JSONB columns of one message.
type messageJSON struct {
	readBy, attachments, editHistory, reactions string
	location                                    *string
}

func encodeMessage(m *message.Message) (messageJSON, error) {
	var out messageJSON
	enc := func(v any, dst *string) error {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		*dst = string(b)
		return nil
	}
	readBy := m.ReadBy
	if readBy == nil {
		readBy = []message.Receipt{}
	}
	attachments := m.Attachments
	if attachments == nil {
		attachments = []message.Attachment{}
	}
	history := m.EditHistory
	if history == nil {
		history = []message.Revision{}
	}
	reactions := m.Reactions
	if reactions == nil {
		reactions = []message.Reaction{}
	}
	if err := enc(readBy, &out.readBy); err != nil {
		return out, err
	}
	if err := enc(attachments, &out.attachments); err != nil {
		return out, err
	}
	if err := enc(history, &out.editHistory); err != nil {
		return out, err
	}
	if err := enc(reactions, &out.reactions); err != nil {
		return out, err
	}
	if m.Location != nil {
		var loc string
		if err := enc(m.Location, &loc); err != nil {
			return out, err
		}
		out.location = &loc
	}
	return out, nil
}

func scanMessage(row pgx.Row) (*message.Message, error) {
	var (
		m                                          message.Message
		kind, status, priority                     string
		readBy, attachments, location, history, rx []byte
	)
	err := row.Scan(
		&m.ID, &m.Seq, &m.RequestID, &m.SenderID, &m.Content, &kind, &status, &priority,
		&readBy, &attachments, &location, &m.ReplyTo, &history,
		&m.IsEdited, &m.IsDeleted, &m.DeletedAt, &m.DeletedBy, &rx, &m.ExpiresAt,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.Kind = message.Kind(kind)
	m.Status = message.DeliveryStatus(status)
	m.Priority = message.Priority(priority)

	dec := func(raw []byte, dst any) error {
		if len(raw) == 0 {
			return nil
		}
		return json.Unmarshal(raw, dst)
	}
	if err := dec(readBy, &m.ReadBy); err != nil {
		return nil, fmt.Errorf("decode read_by: %w", err)
	}
	if m.ReadBy == nil {
		m.ReadBy = []message.Receipt{}
	}
	if err := dec(attachments, &m.Attachments); err != nil {
		return nil, fmt.Errorf("decode attachments: %w", err)
	}
	if len(location) > 0 && string(location) != "null" {
		var p geo.Point
		if err := json.Unmarshal(location, &p); err != nil {
			return nil, fmt.Errorf("decode location: %w", err)
		}
		m.Location = &p
	}
	if err := dec(history, &m.EditHistory); err != nil {
		return nil, fmt.Errorf("decode edit_history: %w", err)
	}
	if err := dec(rx, &m.Reactions); err != nil {
		return nil, fmt.Errorf("decode reactions: %w", err)
	}
	return &m, nil
}

func scanMessages(rows pgx.Rows) ([]*message.Message, error) {
	defer rows.Close()
	var out []*message.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

func (repo *MessageRepo) Create(ctx context.Context, m *message.Message) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	j, err := encodeMessage(m)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO messages (
			id, request_id, sender_id, content, kind, status, priority,
			read_by, attachments, location, reply_to, edit_history,
			is_edited, is_deleted, deleted_at, deleted_by, reactions, expires_at,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING seq
	`,
		m.ID, m.RequestID, m.SenderID, m.Content, m.Kind.String(), m.Status.String(), m.Priority.String(),
		j.readBy, j.attachments, j.location, m.ReplyTo, j.editHistory,
		m.IsEdited, m.IsDeleted, m.DeletedAt, m.DeletedBy, j.reactions, m.ExpiresAt,
		m.CreatedAt, m.UpdatedAt,
	).Scan(&m.Seq)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (repo *MessageRepo) GetByID(ctx context.Context, id string) (*message.Message, error) {
	return repo.get(ctx, id, "")
}

func (repo *MessageRepo) GetForUpdate(ctx context.Context, id string) (*message.Message, error) {
	return repo.get(ctx, id, " FOR UPDATE")
}

func (repo *MessageRepo) get(ctx context.Context, id, suffix string) (*message.Message, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	m, err := scanMessage(tx.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`+suffix, id))
	if err != nil {
		return nil, notFound(err)
	}
	return m, nil
}

// Update writes every mutable column of m.
func (repo *MessageRepo) Update(ctx context.Context, m *message.Message) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}
	j, err := encodeMessage(m)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE messages SET
			content = $2, status = $3, read_by = $4, attachments = $5, location = $6,
			edit_history = $7, is_edited = $8, is_deleted = $9, deleted_at = $10,
			deleted_by = $11, reactions = $12, updated_at = $13
		WHERE id = $1
	`,
		m.ID, m.Content, m.Status.String(), j.readBy, j.attachments, j.location,
		j.editHistory, m.IsEdited, m.IsDeleted, m.DeletedAt,
		m.DeletedBy, j.reactions, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (repo *MessageRepo) Recent(ctx context.Context, requestID string, limit int) ([]*message.Message, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE request_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2
	`, requestID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent messages: %w", err)
	}
	return scanMessages(rows)
}

func (repo *MessageRepo) Page(ctx context.Context, requestID string, offset, limit int) ([]*message.Message, int, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := tx.QueryRow(ctx, `
		SELECT count(*) FROM messages WHERE request_id = $1 AND NOT is_deleted
	`, requestID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}

	rows, err := tx.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE request_id = $1 AND NOT is_deleted
		ORDER BY created_at DESC, seq DESC
		OFFSET $2 LIMIT $3
	`, requestID, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("query message page: %w", err)
	}
	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, 0, err
	}
	return msgs, total, nil
}

// unreadFilter matches messages reader did not send and has no receipt on.
const unreadFilter = `
	request_id = $1 AND NOT is_deleted AND sender_id <> $2
	AND NOT read_by @> jsonb_build_array(jsonb_build_object('user', $2::text))`

func (repo *MessageRepo) Unread(ctx context.Context, requestID, reader string) ([]*message.Message, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `SELECT `+messageColumns+` FROM messages WHERE `+unreadFilter+` ORDER BY created_at ASC, seq ASC`,
		requestID, reader)
	if err != nil {
		return nil, fmt.Errorf("query unread: %w", err)
	}
	return scanMessages(rows)
}

func (repo *MessageRepo) UnreadCount(ctx context.Context, requestID, reader string) (int, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM messages WHERE `+unreadFilter, requestID, reader).Scan(&n); err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

func (repo *MessageRepo) Search(ctx context.Context, requestID, query string, limit int) ([]*message.Message, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	pattern := "%" + escapeLike(strings.TrimSpace(query)) + "%"
	rows, err := tx.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE request_id = $1 AND NOT is_deleted AND kind = $2 AND content ILIKE $3
		ORDER BY created_at DESC, seq DESC
		LIMIT $4
	`, requestID, message.KindText.String(), pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}
	return scanMessages(rows)
}

func (repo *MessageRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM messages WHERE expires_at IS NOT NULL AND expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired messages: %w", err)
	}
	return tag.RowsAffected(), nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
