package dto

import (
	"time"

	"github.com/agrilink/sourcing-service/internal/domain"
)

// SignupRequest payload for new accounts.
type SignupRequest struct {
	Email       string      `json:"email"`
	Password    string      `json:"password"`
	Role        domain.Role `json:"role"`
	Name        string      `json:"name"`
	Contact     string      `json:"contact"`
	Description string      `json:"description"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ChangePasswordRequest payload.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ProfileResponse is the public view of a user profile.
type ProfileResponse struct {
	ID          string      `json:"id"`
	Email       string      `json:"email"`
	Name        string      `json:"name"`
	Contact     string      `json:"contact"`
	Description string      `json:"description"`
	Role        domain.Role `json:"role"`
	Certified   bool        `json:"certified"`
}

// NewProfileResponse maps a domain user.
func NewProfileResponse(user *domain.User) ProfileResponse {
	return ProfileResponse{
		ID:          user.ID,
		Email:       user.Email,
		Name:        user.Name,
		Contact:     user.Contact,
		Description: user.Description,
		Role:        user.Role,
		Certified:   user.Certified,
	}
}
