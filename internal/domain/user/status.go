package user

import (
	"errors"
	"strings"
)

// Status is the account state. Only active accounts may open a realtime session.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusSuspended Status = "SUSPENDED"
	StatusBanned    Status = "BANNED"
)

var ErrInvalidStatus = errors.New("invalid user status")

func ParseStatus(in string) (Status, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(in)))
	if status.Valid() {
		return status, nil
	}
	return "", ErrInvalidStatus
}

func (status Status) Valid() bool {
	switch status {
	case StatusActive, StatusSuspended, StatusBanned:
		return true
	default:
		return false
	}
}

func (status Status) String() string {
	return string(status)
}

// CanConnect reports whether the account may hold a live connection.
func (status Status) CanConnect() bool {
	return status == StatusActive
}
