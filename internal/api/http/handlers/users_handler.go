package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/agrilink/sourcing-service/internal/api/dto"
	"github.com/agrilink/sourcing-service/internal/auth"
	"github.com/agrilink/sourcing-service/internal/domain"
	"github.com/agrilink/sourcing-service/internal/repository"
	"github.com/agrilink/sourcing-service/internal/service"
	apperrors "github.com/agrilink/sourcing-service/pkg/util"
)

// UsersHandler exposes auth and directory endpoints.
type UsersHandler struct {
	auth  *service.AuthService
	users repository.UserRepository
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService, users repository.UserRepository) *UsersHandler {
	return &UsersHandler{auth: authService, users: users}
}

// Signup handles POST /auth/register.
func (h *UsersHandler) Signup(c *fiber.Ctx) error {
	var req dto.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	session, err := h.auth.Signup(c.UserContext(), service.SignupInput{
		Email:       req.Email,
		Password:    req.Password,
		Role:        req.Role,
		Name:        req.Name,
		Contact:     req.Contact,
		Description: req.Description,
	})
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": fiber.Map{
			"profile": dto.NewProfileResponse(session.Profile),
			"auth":    dto.AuthResponse{Token: session.Token, ExpiresAt: session.ExpiresAt},
		},
	})
}

// Login handles POST /auth/login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	session, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"profile": dto.NewProfileResponse(session.Profile),
			"auth":    dto.AuthResponse{Token: session.Token, ExpiresAt: session.ExpiresAt},
		},
	})
}

// ChangePassword handles POST /auth/password/change.
func (h *UsersHandler) ChangePassword(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.auth.ChangePassword(c.UserContext(), principal.Email, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"changed": true}})
}

// Me handles GET /auth/me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	return c.JSON(fiber.Map{"data": dto.NewProfileResponse(principal.Profile)})
}

// ListProducers handles GET /producers, the directory buyers pick from.
func (h *UsersHandler) ListProducers(c *fiber.Ctx) error {
	producers, err := h.users.ListByRole(c.UserContext(), domain.RoleProducer)
	if err != nil {
		return apperrors.MapError(err)
	}

	result := make([]dto.ProfileResponse, 0, len(producers))
	for i := range producers {
		result = append(result, dto.NewProfileResponse(&producers[i]))
	}
	return c.JSON(fiber.Map{"data": result})
}
