package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/agrilink/sourcing-service/internal/domain"
	apperrors "github.com/agrilink/sourcing-service/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller with its resolved role and
// profile. The two are loaded in one step; there is no state where a
// principal exists without a role.
type Principal struct {
	AccountID string
	Email     string
	Role      domain.Role
	Profile   *domain.User
}

// PrincipalResolver turns a bearer token into a resolved principal. A nil
// principal with a nil error means the token did not authenticate. An
// authenticated token whose profile is missing surfaces its own error.
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, token string) (*Principal, error)
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	resolver PrincipalResolver
}

// NewAuthMiddleware constructs middleware around a resolver.
func NewAuthMiddleware(resolver PrincipalResolver) *AuthMiddleware {
	return &AuthMiddleware{resolver: resolver}
}

// Handle enforces authentication for protected routes. A valid token whose
// email has no profile row yields NOT_FOUND, not UNAUTHORIZED: the account
// exists in the auth system but was never provisioned.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	principal, err := m.resolver.ResolvePrincipal(c.UserContext(), parts[1])
	if err != nil {
		return err
	}
	if principal == nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	c.Locals(principalKey, principal)
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
