package message

import (
	"errors"
	"strings"
)

// Kind is the message content type.
type Kind string

const (
	KindText     Kind = "text"
	KindImage    Kind = "image"
	KindFile     Kind = "file"
	KindLocation Kind = "location"
	KindSystem   Kind = "system"
)

// DeliveryStatus tracks how far a message got towards its recipient.
type DeliveryStatus string

const (
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusRead      DeliveryStatus = "read"
	StatusFailed    DeliveryStatus = "failed"
)

// Priority influences notification channel selection.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var (
	ErrInvalidKind     = errors.New("invalid message type")
	ErrInvalidPriority = errors.New("invalid message priority")
)

// ParseKind accepts the user-sendable kinds; empty means text. System messages
// are created by the server only.
func ParseKind(in string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(in)))
	switch k {
	case "":
		return KindText, nil
	case KindText, KindImage, KindFile, KindLocation:
		return k, nil
	default:
		return "", ErrInvalidKind
	}
}

func (k Kind) Valid() bool {
	switch k {
	case KindText, KindImage, KindFile, KindLocation, KindSystem:
		return true
	default:
		return false
	}
}

func (k Kind) String() string { return string(k) }

func (s DeliveryStatus) Valid() bool {
	switch s {
	case StatusSent, StatusDelivered, StatusRead, StatusFailed:
		return true
	default:
		return false
	}
}

func (s DeliveryStatus) String() string { return string(s) }

// ParsePriority accepts the four levels; empty means normal.
func ParsePriority(in string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(in)))
	switch p {
	case "":
		return PriorityNormal, nil
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return p, nil
	default:
		return "", ErrInvalidPriority
	}
}

func (p Priority) String() string { return string(p) }

// Elevated reports high and urgent priorities.
func (p Priority) Elevated() bool {
	return p == PriorityHigh || p == PriorityUrgent
}
