package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/agrilink/sourcing-service/internal/auth"
	"github.com/agrilink/sourcing-service/internal/domain"
	"github.com/agrilink/sourcing-service/internal/repository"
	"github.com/agrilink/sourcing-service/pkg/util"
)

// VisibilityService computes, per role, which requests a principal can see.
//
// Buyers see every request they authored, any status. Producers see all
// pending requests system-wide plus every request assigned to them, any
// status. The broadcast of pending requests to all producers is the open
// marketplace matching behavior and is intentional.
type VisibilityService struct {
	requests repository.RequestRepository
	cache    ViewCache
}

// NewVisibilityService constructs the service.
func NewVisibilityService(requests repository.RequestRepository, cache ViewCache) *VisibilityService {
	return &VisibilityService{requests: requests, cache: cache}
}

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// PageRequest bounds one page of a visibility listing. The zero value selects
// the first page at the default size.
type PageRequest struct {
	Page int
	Size int
}

// Normalize clamps the page selection to valid bounds.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Size <= 0 {
		p.Size = defaultPageSize
	}
	if p.Size > maxPageSize {
		p.Size = maxPageSize
	}
	return p
}

func (p PageRequest) offset() int {
	return (p.Page - 1) * p.Size
}

// VisibleRequests returns one page of the principal's scoped request list,
// served from the view cache when a fresh entry exists. Every page of the
// scope is reachable by walking the page numbers; nothing is withheld beyond
// the page bounds.
func (s *VisibilityService) VisibleRequests(ctx context.Context, principal *auth.Principal, page PageRequest) ([]domain.Request, error) {
	page = page.Normalize()
	view := fmt.Sprintf("%s:%s:%d:%d", principal.Role, strings.ToLower(principal.Email), page.Page, page.Size)
	if s.cache != nil {
		if cached, ok := s.cache.Fetch(ctx, view); ok {
			return cached, nil
		}
	}

	filter := repository.RequestFilter{Limit: page.Size, Offset: page.offset()}
	switch principal.Role {
	case domain.RoleBuyer:
		email := principal.Email
		filter.BuyerEmail = &email
	case domain.RoleProducer:
		email := principal.Email
		filter.VisibleToProducer = &email
	default:
		return nil, util.NewForbidden("unknown role")
	}

	requests, err := s.requests.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, util.MapError(err)
	}
	if requests == nil {
		requests = []domain.Request{}
	}
	if s.cache != nil {
		s.cache.Store(ctx, view, requests)
	}
	return requests, nil
}

// VisibleRequest fetches a single request if the principal may observe it.
func (s *VisibilityService) VisibleRequest(ctx context.Context, principal *auth.Principal, requestID string) (*domain.Request, error) {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, util.NewNotFound("request", map[string]any{"request_id": requestID})
		}
		return nil, util.MapError(err)
	}
	if !s.observable(principal, request) {
		return nil, util.NewForbidden("request is not visible to this principal")
	}
	return request, nil
}

// InvalidateViews drops all cached views. Called by the lifecycle engine
// after every mutation so readers re-derive instead of full-reloading.
func (s *VisibilityService) InvalidateViews(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.InvalidateAll(ctx)
}

func (s *VisibilityService) observable(principal *auth.Principal, request *domain.Request) bool {
	switch principal.Role {
	case domain.RoleBuyer:
		return strings.EqualFold(request.Buyer.Email, principal.Email)
	case domain.RoleProducer:
		if strings.EqualFold(request.Producer.Email, principal.Email) {
			return true
		}
		return request.Status == domain.RequestStatusPending
	}
	return false
}
