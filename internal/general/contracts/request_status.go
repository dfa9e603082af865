package contracts

import (
	"time"

	"transport-connect/internal/domain/geo"
)

// RequestStatusMessage is published after a status transition is committed.
// Routing key: "request.status.{status}" on ExchangeRequestTopic.
type RequestStatusMessage struct {
	RequestID      string     `json:"request_id"`
	TripID         string     `json:"trip_id,omitempty"`
	Status         string     `json:"status"`
	PreviousStatus string     `json:"previous_status"`
	UpdatedBy      string     `json:"updated_by"`
	Note           string     `json:"note,omitempty"`
	Location       *geo.Point `json:"location,omitempty"`
	Timestamp      time.Time  `json:"timestamp"`
	Envelope
}
