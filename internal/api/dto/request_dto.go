package dto

import (
	"time"

	"github.com/agrilink/sourcing-service/internal/domain"
)

// SubmitRequest payload for a new sourcing request.
type SubmitRequest struct {
	ProducerID string `json:"producer_id"`
	CropName   string `json:"crop_name"`
	Quantity   string `json:"quantity"`
	Price      string `json:"price"`
	Deadline   string `json:"deadline"` // YYYY-MM-DD
	Location   string `json:"location"`
	Notes      string `json:"notes"`
}

// PartyResponse is one side's contact snapshot.
type PartyResponse struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

// RequestResponse is the full request view.
type RequestResponse struct {
	ID        string               `json:"id"`
	Buyer     PartyResponse        `json:"buyer"`
	Producer  PartyResponse        `json:"producer"`
	CropName  string               `json:"crop_name"`
	Quantity  string               `json:"quantity"`
	Price     string               `json:"price"`
	Deadline  string               `json:"deadline"`
	Location  string               `json:"location"`
	Notes     string               `json:"notes"`
	Status    domain.RequestStatus `json:"status"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// NewRequestResponse maps a domain request.
func NewRequestResponse(request *domain.Request) RequestResponse {
	return RequestResponse{
		ID:        request.ID,
		Buyer:     PartyResponse{Name: request.Buyer.Name, Email: request.Buyer.Email, Contact: request.Buyer.Contact},
		Producer:  PartyResponse{Name: request.Producer.Name, Email: request.Producer.Email, Contact: request.Producer.Contact},
		CropName:  request.CropName,
		Quantity:  request.Quantity,
		Price:     request.Price,
		Deadline:  request.Deadline.Format("2006-01-02"),
		Location:  request.Location,
		Notes:     request.Notes,
		Status:    request.Status,
		CreatedAt: request.CreatedAt,
		UpdatedAt: request.UpdatedAt,
	}
}

// NewRequestListResponse maps a slice of domain requests.
func NewRequestListResponse(requests []domain.Request) []RequestResponse {
	result := make([]RequestResponse, 0, len(requests))
	for i := range requests {
		result = append(result, NewRequestResponse(&requests[i]))
	}
	return result
}
