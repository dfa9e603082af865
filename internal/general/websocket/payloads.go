package websocket

import (
	"transport-connect/internal/domain/geo"
	"transport-connect/internal/domain/message"
)

type roomPayload struct {
	RequestID string `json:"requestId" validate:"max=64"`
}

type sendMessagePayload struct {
	RequestID   string               `json:"requestId" validate:"max=64"`
	Content     string               `json:"content"`
	Type        string               `json:"type" validate:"omitempty,oneof=text image file location"`
	Priority    string               `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	ReplyTo     string               `json:"replyTo" validate:"max=64"`
	Location    *geo.Point           `json:"location"`
	Attachments []message.Attachment `json:"attachments" validate:"max=10"`
}

type markReadPayload struct {
	RequestID  string   `json:"requestId" validate:"max=64"`
	MessageIDs []string `json:"messageIds" validate:"max=500,dive,required,max=64"`
}

type statusPayload struct {
	RequestID string     `json:"requestId" validate:"max=64"`
	Status    string     `json:"status" validate:"max=32"`
	Note      string     `json:"note" validate:"max=500"`
	Location  *geo.Point `json:"location"`
}

type locationPayload struct {
	RequestID string     `json:"requestId" validate:"max=64"`
	Location  *geo.Point `json:"location" validate:"required"`
}

type pongPayload struct {
	Timestamp int64 `json:"timestamp"`
}
