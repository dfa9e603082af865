package contracts

import (
	"time"

	"transport-connect/internal/domain/geo"
	"transport-connect/internal/domain/message"
)

// Client -> server event types.
const (
	EventAuth                = "auth"
	EventJoinConversation    = "join_conversation"
	EventLeaveConversation   = "leave_conversation"
	EventSendMessage         = "send_message"
	EventTypingStart         = "typing_start"
	EventTypingStop          = "typing_stop"
	EventMarkMessagesRead    = "mark_messages_read"
	EventRequestStatusUpdate = "request_status_update"
	EventShareLocation       = "share_location"
	EventPing                = "ping"
)

// Server -> client event types.
const (
	EventAuthSuccess            = "auth_success"
	EventAuthError              = "auth_error"
	EventConversationJoined     = "conversation_joined"
	EventConversationLeft       = "conversation_left"
	EventNewMessage             = "new_message"
	EventNewMessageNotification = "new_message_notification"
	EventMessageUpdated         = "message_updated"
	EventUserTyping             = "user_typing"
	EventUserStopTyping         = "user_stop_typing"
	EventMessagesRead           = "messages_read"
	EventRequestStatusUpdated   = "request_status_updated"
	EventLocationShared         = "location_shared"
	EventUserOnline             = "user_online"
	EventUserOffline            = "user_offline"
	EventPong                   = "pong"
	EventError                  = "error"
)

// AuthSuccess acknowledges a session.
type AuthSuccess struct {
	UserID    string    `json:"userId"`
	Role      string    `json:"role"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage is broadcast to the conversation room.
type NewMessage struct {
	RequestID string           `json:"requestId"`
	Message   *message.Message `json:"message"`
}

// SenderBrief is the public card of a message author.
type SenderBrief struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	Role   string `json:"role"`
}

// NewMessageNotification goes to the private channel of the absent side.
type NewMessageNotification struct {
	RequestID string           `json:"requestId"`
	Message   *message.Message `json:"message"`
	Sender    SenderBrief      `json:"sender"`
}

// Typing is used for both user_typing and user_stop_typing.
type Typing struct {
	UserID    string `json:"userId"`
	RequestID string `json:"requestId"`
}

// MessagesRead reports new read receipts.
type MessagesRead struct {
	RequestID  string    `json:"requestId"`
	ReadBy     string    `json:"readBy"`
	MessageIDs []string  `json:"messageIds"`
	ReadAt     time.Time `json:"readAt"`
}

// RequestStatusUpdated reports an applied transition.
type RequestStatusUpdated struct {
	RequestID string     `json:"requestId"`
	Status    string     `json:"status"`
	Note      string     `json:"note,omitempty"`
	UpdatedBy string     `json:"updatedBy"`
	Location  *geo.Point `json:"location,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// LocationShared relays a participant's position.
type LocationShared struct {
	RequestID string    `json:"requestId"`
	UserID    string    `json:"userId"`
	Location  geo.Point `json:"location"`
	Timestamp time.Time `json:"timestamp"`
}

// Presence is used for user_online and user_offline.
type Presence struct {
	UserID   string    `json:"userId"`
	LastSeen time.Time `json:"lastSeen"`
}

// ConversationLeft acknowledges leave_conversation.
type ConversationLeft struct {
	RequestID string `json:"requestId"`
}

// ErrorEvent is sent to the originating connection only.
type ErrorEvent struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Event   string `json:"event,omitempty"`
}
