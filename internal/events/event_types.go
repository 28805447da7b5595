package events

import (
	"time"

	"github.com/agrilink/sourcing-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventRequestSubmitted EventType = "request_submitted"
	EventRequestAccepted  EventType = "request_accepted"
	EventRequestDeclined  EventType = "request_declined"
	EventRequestCompleted EventType = "request_completed"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	RequestID string      `json:"request_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// RequestSubmittedPayload payload.
type RequestSubmittedPayload struct {
	CropName      string `json:"crop_name"`
	Quantity      string `json:"quantity"`
	BuyerEmail    string `json:"buyer_email"`
	ProducerEmail string `json:"producer_email"`
}

// RequestStatusChangedPayload payload shared by accept/decline/complete events.
type RequestStatusChangedPayload struct {
	OldStatus domain.RequestStatus `json:"old_status"`
	NewStatus domain.RequestStatus `json:"new_status"`
}
