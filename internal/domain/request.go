package domain

import "time"

// RequestStatus enumerates lifecycle states for sourcing requests.
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusAccepted  RequestStatus = "accepted"
	RequestStatusDeclined  RequestStatus = "declined"
	RequestStatusCompleted RequestStatus = "completed"
)

// Valid reports whether the status is part of the closed enumeration.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending, RequestStatusAccepted, RequestStatusDeclined, RequestStatusCompleted:
		return true
	}
	return false
}

// allowedTransitions is the full transition graph. Declined and completed
// have no outgoing edges.
var allowedTransitions = map[RequestStatus][]RequestStatus{
	RequestStatusPending:   {RequestStatusAccepted, RequestStatusDeclined},
	RequestStatusAccepted:  {RequestStatusCompleted},
	RequestStatusDeclined:  {},
	RequestStatusCompleted: {},
}

// CanTransition reports whether current -> next is an edge of the graph.
func CanTransition(current, next RequestStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the status has no outgoing transitions.
func (s RequestStatus) Terminal() bool {
	return len(allowedTransitions[s]) == 0 && s.Valid()
}

// PartySnapshot is the contact data of one side of a request, captured at
// creation time. A request is a point-in-time commercial offer; snapshots are
// never re-synced when the underlying profile changes.
type PartySnapshot struct {
	Name    string
	Email   string
	Contact string
}

// Request is the aggregate for one sourcing ask from a buyer to a producer.
type Request struct {
	ID        string
	Buyer     PartySnapshot
	Producer  PartySnapshot
	CropName  string
	Quantity  string
	Price     string
	Deadline  time.Time
	Location  string
	Notes     string
	Status    RequestStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}
