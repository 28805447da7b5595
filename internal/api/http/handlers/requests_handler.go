package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/agrilink/sourcing-service/internal/api/dto"
	"github.com/agrilink/sourcing-service/internal/auth"
	"github.com/agrilink/sourcing-service/internal/domain"
	"github.com/agrilink/sourcing-service/internal/service"
	apperrors "github.com/agrilink/sourcing-service/pkg/util"
)

// RequestsHandler exposes sourcing request endpoints. It is a thin surface:
// every lifecycle and visibility rule is enforced in the services it calls.
type RequestsHandler struct {
	requests   *service.RequestService
	visibility *service.VisibilityService
}

// NewRequestsHandler constructs handler.
func NewRequestsHandler(requests *service.RequestService, visibility *service.VisibilityService) *RequestsHandler {
	return &RequestsHandler{requests: requests, visibility: visibility}
}

// Submit handles POST /requests.
func (h *RequestsHandler) Submit(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.SubmitRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	var deadline time.Time
	if req.Deadline != "" {
		parsed, err := time.Parse("2006-01-02", req.Deadline)
		if err != nil {
			return apperrors.NewValidationError("deadline must be a YYYY-MM-DD date", map[string]any{"deadline": req.Deadline})
		}
		deadline = parsed
	}

	request, err := h.requests.Submit(c.UserContext(), principal, service.SubmitInput{
		ProducerID: req.ProducerID,
		CropName:   req.CropName,
		Quantity:   req.Quantity,
		Price:      req.Price,
		Deadline:   deadline,
		Location:   req.Location,
		Notes:      req.Notes,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewRequestResponse(request)})
}

// List handles GET /requests.
func (h *RequestsHandler) List(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	page := service.PageRequest{
		Page: c.QueryInt("page", 1),
		Size: c.QueryInt("page_size", 0),
	}.Normalize()

	requests, err := h.visibility.VisibleRequests(c.UserContext(), principal, page)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": dto.NewRequestListResponse(requests),
		"meta": fiber.Map{"page": page.Page, "page_size": page.Size},
	})
}

// Get handles GET /requests/:id.
func (h *RequestsHandler) Get(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	request, err := h.visibility.VisibleRequest(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewRequestResponse(request)})
}

// Accept handles POST /requests/:id/accept.
func (h *RequestsHandler) Accept(c *fiber.Ctx) error {
	return h.act(c, h.requests.Accept)
}

// Decline handles POST /requests/:id/decline.
func (h *RequestsHandler) Decline(c *fiber.Ctx) error {
	return h.act(c, h.requests.Decline)
}

// Complete handles POST /requests/:id/complete.
func (h *RequestsHandler) Complete(c *fiber.Ctx) error {
	return h.act(c, h.requests.Complete)
}

func (h *RequestsHandler) act(c *fiber.Ctx, op func(ctx context.Context, requestID string, principal *auth.Principal) (*domain.Request, error)) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	request, err := op(c.UserContext(), c.Params("id"), principal)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewRequestResponse(request)})
}
