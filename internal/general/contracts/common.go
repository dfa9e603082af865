package contracts

import "time"

// Envelope adds cross-cutting headers all broker messages carry.
type Envelope struct {
	CorrelationID string    `json:"correlation_id,omitempty"` // Correlation for tracing across services
	Producer      string    `json:"producer,omitempty"`       // Producer service name, e.g. "chat-service"
	SentAt        time.Time `json:"sent_at,omitempty"`        // send time (UTC)
}
