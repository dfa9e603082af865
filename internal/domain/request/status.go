package request

import (
	"errors"
	"strings"
)

// Status is the lifecycle state of a shipment request.
type Status string

const (
	StatusPending     Status = "pending"
	StatusAccepted    Status = "accepted"
	StatusRejected    Status = "rejected"
	StatusPickupReady Status = "pickup-ready"
	StatusInTransit   Status = "in-transit"
	StatusDelivered   Status = "delivered"
	StatusCancelled   Status = "cancelled"
	StatusDisputed    Status = "disputed"
)

var ErrInvalidStatus = errors.New("invalid request status")

// transitions is the legal lifecycle graph. A status absent from the map has no exits.
// Disputed requests leave this graph only through dispute resolution, which is not handled here.
var transitions = map[Status][]Status{
	StatusPending:     {StatusAccepted, StatusRejected},
	StatusAccepted:    {StatusPickupReady, StatusCancelled, StatusDisputed},
	StatusPickupReady: {StatusInTransit, StatusCancelled},
	StatusInTransit:   {StatusDelivered, StatusDisputed},
}

// ParseStatus normalizes (lowercases+trims) and validates a status string.
// Underscores are accepted in place of hyphens ("in_transit").
func ParseStatus(in string) (Status, error) {
	s := strings.ToLower(strings.TrimSpace(in))
	s = strings.ReplaceAll(s, "_", "-")
	status := Status(s)
	if status.Valid() {
		return status, nil
	}
	return "", ErrInvalidStatus
}

// Valid reports whether status is one of the lifecycle statuses.
func (status Status) Valid() bool {
	switch status {
	case StatusPending, StatusAccepted, StatusRejected, StatusPickupReady,
		StatusInTransit, StatusDelivered, StatusCancelled, StatusDisputed:
		return true
	default:
		return false
	}
}

func (status Status) String() string {
	return string(status)
}

// CanTransitionTo reports whether next is a legal successor of status.
func (status Status) CanTransitionTo(next Status) bool {
	for _, s := range transitions[status] {
		if s == next {
			return true
		}
	}
	return false
}

// Next returns the legal successors of status. The slice is a copy.
func (status Status) Next() []Status {
	out := make([]Status, len(transitions[status]))
	copy(out, transitions[status])
	return out
}

// Terminal reports whether the request is finished for good.
func (status Status) Terminal() bool {
	return status == StatusDelivered || status == StatusRejected || status == StatusCancelled
}

// AllStatuses lists every status in lifecycle order.
func AllStatuses() []Status {
	return []Status{
		StatusPending, StatusAccepted, StatusRejected, StatusPickupReady,
		StatusInTransit, StatusDelivered, StatusCancelled, StatusDisputed,
	}
}
