package message

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"transport-connect/internal/domain/geo"
)

const (
	// MaxContentLength is the default content bound, in characters.
	MaxContentLength = 2000
	// DefaultEditHistoryLimit is how many prior versions an edited message keeps.
	DefaultEditHistoryLimit = 20
	// DeletedPlaceholder replaces the content of a soft-deleted message.
	DeletedPlaceholder = "[message deleted]"

	maxEmojiLength = 16
)

var (
	ErrEmptyContent    = errors.New("message content is required")
	ErrContentTooLong  = errors.New("message content is too long")
	ErrEmptyRequestID  = errors.New("request id is required")
	ErrNotAuthor       = errors.New("only the author can change this message")
	ErrAlreadyDeleted  = errors.New("message is deleted")
	ErrInvalidEmoji    = errors.New("invalid reaction emoji")
	ErrSystemImmutable = errors.New("system messages cannot be changed")
)

// Receipt records that a participant read a message.
type Receipt struct {
	UserID string    `json:"user"`
	ReadAt time.Time `json:"readAt"`
}

// Attachment is an uploaded file reference. Storage lives elsewhere.
type Attachment struct {
	URL          string `json:"url"`
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName,omitempty"`
	MimeType     string `json:"mimetype,omitempty"`
	Size         int64  `json:"size,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

// Revision is a previous version of an edited message.
type Revision struct {
	Content  string    `json:"content"`
	EditedAt time.Time `json:"editedAt"`
}

// Reaction is one emoji and the users who put it on the message.
type Reaction struct {
	Emoji string   `json:"emoji"`
	Users []string `json:"users"`
	Count int      `json:"count"`
}

// Message is one entry of a conversation log. Seq is assigned by the store
// and orders messages that share a timestamp.
type Message struct {
	ID          string         `json:"id"`
	Seq         int64          `json:"seq"`
	RequestID   string         `json:"requestId"`
	SenderID    string         `json:"sender,omitempty"`
	Content     string         `json:"content"`
	Kind        Kind           `json:"type"`
	Status      DeliveryStatus `json:"status"`
	Priority    Priority       `json:"priority"`
	ReadBy      []Receipt      `json:"readBy"`
	Attachments []Attachment   `json:"attachments,omitempty"`
	Location    *geo.Point     `json:"location,omitempty"`
	ReplyTo     string         `json:"replyTo,omitempty"`
	EditHistory []Revision     `json:"editHistory,omitempty"`
	IsEdited    bool           `json:"isEdited"`
	IsDeleted   bool           `json:"isDeleted"`
	DeletedAt   *time.Time     `json:"deletedAt,omitempty"`
	DeletedBy   string         `json:"deletedBy,omitempty"`
	Reactions   []Reaction     `json:"reactions,omitempty"`
	ExpiresAt   *time.Time     `json:"expiresAt,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// Draft is what a participant submits.
type Draft struct {
	RequestID   string
	SenderID    string
	Content     string
	Kind        Kind
	Priority    Priority
	ReplyTo     string
	Location    *geo.Point
	Attachments []Attachment
	TTL         time.Duration
}

// New validates a draft and returns an unsaved message with status sent.
// maxLen <= 0 uses MaxContentLength.
func New(d Draft, maxLen int, now time.Time) (*Message, error) {
	if strings.TrimSpace(d.RequestID) == "" {
		return nil, ErrEmptyRequestID
	}
	content, err := cleanContent(d.Content, maxLen)
	if err != nil {
		return nil, err
	}
	kind := d.Kind
	if kind == "" {
		kind = KindText
	}
	if !kind.Valid() || kind == KindSystem {
		return nil, ErrInvalidKind
	}
	prio := d.Priority
	if prio == "" {
		prio = PriorityNormal
	}
	if d.Location != nil {
		if err := d.Location.Validate(); err != nil {
			return nil, err
		}
	}

	now = now.UTC()
	m := &Message{
		RequestID:   strings.TrimSpace(d.RequestID),
		SenderID:    d.SenderID,
		Content:     content,
		Kind:        kind,
		Status:      StatusSent,
		Priority:    prio,
		ReadBy:      []Receipt{},
		Attachments: d.Attachments,
		Location:    d.Location,
		ReplyTo:     strings.TrimSpace(d.ReplyTo),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if d.TTL > 0 {
		exp := now.Add(d.TTL)
		m.ExpiresAt = &exp
	}
	return m, nil
}

// Stamp moves the creation time of an unsaved message to now. A TTL set by
// New keeps its length.
func (m *Message) Stamp(now time.Time) {
	now = now.UTC()
	if m.ExpiresAt != nil {
		exp := m.ExpiresAt.Add(now.Sub(m.CreatedAt))
		m.ExpiresAt = &exp
	}
	m.CreatedAt, m.UpdatedAt = now, now
}

// NewSystem builds a server-authored message with no sender.
func NewSystem(requestID, content string, now time.Time) *Message {
	now = now.UTC()
	return &Message{
		RequestID: requestID,
		Content:   content,
		Kind:      KindSystem,
		Status:    StatusSent,
		Priority:  PriorityNormal,
		ReadBy:    []Receipt{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsSystem reports a server-authored message.
func (m *Message) IsSystem() bool {
	return m.Kind == KindSystem && m.SenderID == ""
}

// IsReadBy reports whether userID already has a receipt.
func (m *Message) IsReadBy(userID string) bool {
	for _, r := range m.ReadBy {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// MarkRead adds a receipt for reader. It is a no-op for the sender's own
// messages and for readers that already have a receipt, and reports whether
// anything changed.
func (m *Message) MarkRead(reader string, at time.Time) bool {
	if reader == "" || reader == m.SenderID || m.IsReadBy(reader) {
		return false
	}
	m.ReadBy = append(m.ReadBy, Receipt{UserID: reader, ReadAt: at.UTC()})
	m.Status = StatusRead
	return true
}

// Edit replaces the content, keeping the previous version. Only the sender
// may edit, and deleted messages are frozen. Unchanged content is a no-op.
func (m *Message) Edit(author, content string, at time.Time, maxLen, historyLimit int) error {
	if m.IsSystem() {
		return ErrSystemImmutable
	}
	if author == "" || author != m.SenderID {
		return ErrNotAuthor
	}
	if m.IsDeleted {
		return ErrAlreadyDeleted
	}
	content, err := cleanContent(content, maxLen)
	if err != nil {
		return err
	}
	if content == m.Content {
		return nil
	}
	if historyLimit <= 0 {
		historyLimit = DefaultEditHistoryLimit
	}

	at = at.UTC()
	m.EditHistory = append(m.EditHistory, Revision{Content: m.Content, EditedAt: at})
	if over := len(m.EditHistory) - historyLimit; over > 0 {
		m.EditHistory = append([]Revision(nil), m.EditHistory[over:]...)
	}
	m.Content = content
	m.IsEdited = true
	m.UpdatedAt = at
	return nil
}

// Delete soft-deletes the message. The sender or a moderator may delete;
// deleting twice is a no-op. It reports whether anything changed.
func (m *Message) Delete(actor string, moderator bool, at time.Time) (bool, error) {
	if !moderator && (actor == "" || actor != m.SenderID) {
		return false, ErrNotAuthor
	}
	if m.IsDeleted {
		return false, nil
	}
	at = at.UTC()
	m.IsDeleted = true
	m.DeletedAt = &at
	m.DeletedBy = actor
	m.Content = DeletedPlaceholder
	m.Attachments = nil
	m.Location = nil
	m.Reactions = nil
	m.UpdatedAt = at
	return true, nil
}

// AddReaction records userID under emoji. Duplicates are ignored.
func (m *Message) AddReaction(userID, emoji string, at time.Time) (bool, error) {
	emoji, err := cleanEmoji(emoji)
	if err != nil {
		return false, err
	}
	if m.IsDeleted {
		return false, ErrAlreadyDeleted
	}
	for i := range m.Reactions {
		r := &m.Reactions[i]
		if r.Emoji != emoji {
			continue
		}
		for _, u := range r.Users {
			if u == userID {
				return false, nil
			}
		}
		r.Users = append(r.Users, userID)
		r.Count = len(r.Users)
		m.UpdatedAt = at.UTC()
		return true, nil
	}
	m.Reactions = append(m.Reactions, Reaction{Emoji: emoji, Users: []string{userID}, Count: 1})
	m.UpdatedAt = at.UTC()
	return true, nil
}

// RemoveReaction drops userID from emoji; the emoji goes away with its last user.
func (m *Message) RemoveReaction(userID, emoji string, at time.Time) (bool, error) {
	emoji, err := cleanEmoji(emoji)
	if err != nil {
		return false, err
	}
	for i := range m.Reactions {
		r := &m.Reactions[i]
		if r.Emoji != emoji {
			continue
		}
		for j, u := range r.Users {
			if u != userID {
				continue
			}
			r.Users = append(r.Users[:j], r.Users[j+1:]...)
			r.Count = len(r.Users)
			if r.Count == 0 {
				m.Reactions = append(m.Reactions[:i], m.Reactions[i+1:]...)
			}
			m.UpdatedAt = at.UTC()
			return true, nil
		}
		return false, nil
	}
	return false, nil
}

// Clone returns a deep copy.
func (m *Message) Clone() *Message {
	cp := *m
	cp.ReadBy = append([]Receipt{}, m.ReadBy...)
	if m.Attachments != nil {
		cp.Attachments = append([]Attachment(nil), m.Attachments...)
	}
	if m.Location != nil {
		l := *m.Location
		cp.Location = &l
	}
	if m.EditHistory != nil {
		cp.EditHistory = append([]Revision(nil), m.EditHistory...)
	}
	if m.DeletedAt != nil {
		t := *m.DeletedAt
		cp.DeletedAt = &t
	}
	if m.ExpiresAt != nil {
		t := *m.ExpiresAt
		cp.ExpiresAt = &t
	}
	if m.Reactions != nil {
		cp.Reactions = make([]Reaction, len(m.Reactions))
		for i, r := range m.Reactions {
			r.Users = append([]string(nil), r.Users...)
			cp.Reactions[i] = r
		}
	}
	return &cp
}

func cleanContent(content string, maxLen int) (string, error) {
	if maxLen <= 0 {
		maxLen = MaxContentLength
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > maxLen {
		return "", ErrContentTooLong
	}
	return content, nil
}

func cleanEmoji(emoji string) (string, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" || utf8.RuneCountInString(emoji) > maxEmojiLength {
		return "", ErrInvalidEmoji
	}
	return emoji, nil
}
