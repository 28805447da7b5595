package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/agrilink/sourcing-service/internal/auth"
	"github.com/agrilink/sourcing-service/internal/domain"
	"github.com/agrilink/sourcing-service/internal/events"
	"github.com/agrilink/sourcing-service/internal/repository"
	"github.com/agrilink/sourcing-service/pkg/util"
)

// ViewInvalidator drops cached visibility views after a mutation.
type ViewInvalidator interface {
	InvalidateViews(ctx context.Context) error
}

// SubmitInput describes a new sourcing ask.
type SubmitInput struct {
	ProducerID string
	CropName   string
	Quantity   string
	Price      string
	Deadline   time.Time
	Location   string
	Notes      string
}

// RequestService is the lifecycle engine: it validates and applies status
// transitions, enforcing role and ownership rules on every operation.
type RequestService struct {
	requests   repository.RequestRepository
	users      repository.UserRepository
	dispatcher events.Dispatcher
	views      ViewInvalidator
}

// RequestDependencies bundles collaborators for the request service.
type RequestDependencies struct {
	RequestRepo repository.RequestRepository
	UserRepo    repository.UserRepository
	Dispatcher  events.Dispatcher
	Views       ViewInvalidator
}

// NewRequestService constructs the service.
func NewRequestService(deps RequestDependencies) *RequestService {
	return &RequestService{
		requests:   deps.RequestRepo,
		users:      deps.UserRepo,
		dispatcher: deps.Dispatcher,
		views:      deps.Views,
	}
}

// Submit creates a request in pending state on behalf of a buyer,
// snapshotting both parties' contact data. The snapshots are never re-synced:
// a request is a point-in-time commercial offer, not a live join.
func (s *RequestService) Submit(ctx context.Context, principal *auth.Principal, input SubmitInput) (*domain.Request, error) {
	if principal.Role != domain.RoleBuyer {
		return nil, util.NewForbidden("only buyers can submit requests")
	}
	if err := validateSubmit(input); err != nil {
		return nil, err
	}

	producer, err := s.users.GetByID(ctx, input.ProducerID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, util.NewNotFound("producer", map[string]any{"producer_id": input.ProducerID})
		}
		return nil, util.MapError(err)
	}
	if producer.Role != domain.RoleProducer {
		return nil, util.NewValidationError("addressed user is not a producer", map[string]any{"producer_id": input.ProducerID})
	}

	request := &domain.Request{
		Buyer: domain.PartySnapshot{
			Name:    principal.Profile.Name,
			Email:   principal.Profile.Email,
			Contact: principal.Profile.Contact,
		},
		Producer: domain.PartySnapshot{
			Name:    producer.Name,
			Email:   producer.Email,
			Contact: producer.Contact,
		},
		CropName: strings.TrimSpace(input.CropName),
		Quantity: strings.TrimSpace(input.Quantity),
		Price:    strings.TrimSpace(input.Price),
		Deadline: input.Deadline,
		Location: strings.TrimSpace(input.Location),
		Notes:    strings.TrimSpace(input.Notes),
		Status:   domain.RequestStatusPending,
	}
	if err := s.requests.Create(ctx, request); err != nil {
		return nil, util.MapError(err)
	}

	s.invalidate(ctx)
	s.publishEvent(ctx, events.Event{
		Type:      events.EventRequestSubmitted,
		RequestID: request.ID,
		Actor:     actorFor(principal),
		Payload: events.RequestSubmittedPayload{
			CropName:      request.CropName,
			Quantity:      request.Quantity,
			BuyerEmail:    request.Buyer.Email,
			ProducerEmail: request.Producer.Email,
		},
	})
	return request, nil
}

// Accept transitions pending -> accepted for the assigned producer.
func (s *RequestService) Accept(ctx context.Context, requestID string, principal *auth.Principal) (*domain.Request, error) {
	return s.transition(ctx, requestID, principal, domain.RequestStatusPending, domain.RequestStatusAccepted, events.EventRequestAccepted)
}

// Decline transitions pending -> declined for the assigned producer.
func (s *RequestService) Decline(ctx context.Context, requestID string, principal *auth.Principal) (*domain.Request, error) {
	return s.transition(ctx, requestID, principal, domain.RequestStatusPending, domain.RequestStatusDeclined, events.EventRequestDeclined)
}

// Complete transitions accepted -> completed. Completion is reported by the
// same producer party that accepted.
func (s *RequestService) Complete(ctx context.Context, requestID string, principal *auth.Principal) (*domain.Request, error) {
	return s.transition(ctx, requestID, principal, domain.RequestStatusAccepted, domain.RequestStatusCompleted, events.EventRequestCompleted)
}

// transition applies the shared guard chain: role, ownership, transition
// graph, then the conditional store write. Ownership is checked first so a
// foreign producer always sees FORBIDDEN regardless of request status.
func (s *RequestService) transition(ctx context.Context, requestID string, principal *auth.Principal, expected, next domain.RequestStatus, eventType events.EventType) (*domain.Request, error) {
	if principal.Role != domain.RoleProducer {
		return nil, util.NewForbidden("only producers can act on requests")
	}

	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, util.NewNotFound("request", map[string]any{"request_id": requestID})
		}
		return nil, util.MapError(err)
	}
	if !strings.EqualFold(request.Producer.Email, principal.Email) {
		return nil, util.NewForbidden("request is addressed to a different producer")
	}

	if request.Status != expected {
		// A competing action moved the request past the expected status.
		if !request.Status.Terminal() && domain.CanTransition(expected, request.Status) {
			return nil, util.NewConflict("request already settled", map[string]any{
				"current_status": request.Status,
			})
		}
		return nil, util.NewInvalidTransition("no transition from current status", map[string]any{
			"current_status": request.Status,
			"target_status":  next,
		})
	}

	updated, err := s.requests.UpdateStatus(ctx, requestID, expected, next)
	if err != nil {
		// CONFLICT from the store means this caller lost the race; it is
		// propagated as-is so callers can re-fetch rather than retry blindly.
		return nil, util.MapError(err)
	}

	s.invalidate(ctx)
	s.publishEvent(ctx, events.Event{
		Type:      eventType,
		RequestID: updated.ID,
		Actor:     actorFor(principal),
		Payload: events.RequestStatusChangedPayload{
			OldStatus: expected,
			NewStatus: updated.Status,
		},
	})
	return updated, nil
}

func validateSubmit(input SubmitInput) error {
	missing := map[string]any{}
	for field, value := range map[string]string{
		"crop_name": input.CropName,
		"quantity":  input.Quantity,
		"price":     input.Price,
		"location":  input.Location,
	} {
		if strings.TrimSpace(value) == "" {
			missing[field] = "required"
		}
	}
	if input.Deadline.IsZero() {
		missing["deadline"] = "required"
	} else if input.Deadline.Before(startOfToday()) {
		missing["deadline"] = "must be today or later"
	}
	if len(missing) > 0 {
		return util.NewValidationError("missing or invalid fields", missing)
	}
	return nil
}

// startOfToday is computed in UTC since deadlines arrive as bare dates.
func startOfToday() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *RequestService) invalidate(ctx context.Context) {
	if s.views == nil {
		return
	}
	_ = s.views.InvalidateViews(ctx)
}

func (s *RequestService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func actorFor(principal *auth.Principal) events.Actor {
	return events.Actor{Email: principal.Email, Role: principal.Role}
}
