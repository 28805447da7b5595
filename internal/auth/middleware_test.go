package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrilink/sourcing-service/internal/auth"
	"github.com/agrilink/sourcing-service/internal/domain"
	"github.com/agrilink/sourcing-service/pkg/util"
)

// stubResolver resolves tokens against a fixed profile set, mirroring the
// resolver contract: bad token is (nil, nil), missing profile is NOT_FOUND.
type stubResolver struct {
	tm      *auth.TokenManager
	byEmail map[string]domain.User
}

func (r *stubResolver) ResolvePrincipal(_ context.Context, token string) (*auth.Principal, error) {
	claims, err := r.tm.ParseToken(token)
	if err != nil {
		return nil, nil
	}
	user, ok := r.byEmail[claims.Email]
	if !ok {
		return nil, util.NewNotFound("profile", map[string]any{"email": claims.Email})
	}
	return &auth.Principal{
		AccountID: claims.AccountID,
		Email:     user.Email,
		Role:      user.Role,
		Profile:   &user,
	}, nil
}

func buildTestApp(resolver auth.PrincipalResolver, allowed ...domain.Role) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			domainErr := util.ToDomainError(err)
			return c.Status(domainErr.HTTPStatus).JSON(fiber.Map{
				"error": fiber.Map{"code": domainErr.Code},
			})
		},
	})
	middleware := auth.NewAuthMiddleware(resolver)
	app.Get("/protected", middleware.Handle, auth.RequireRole(allowed...), func(c *fiber.Ctx) error {
		principal, _ := auth.PrincipalFromContext(c)
		return c.JSON(fiber.Map{"email": principal.Email, "role": principal.Role})
	})
	return app
}

func doRequest(t *testing.T, app *fiber.App, authHeader string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestAuthMiddleware_AllowsMatchingRole(t *testing.T) {
	tm := auth.NewTokenManager("unit-secret", 30)
	resolver := &stubResolver{tm: tm, byEmail: map[string]domain.User{
		"ravi@example.com": {ID: "u1", Email: "ravi@example.com", Role: domain.RoleProducer},
	}}
	app := buildTestApp(resolver, domain.RoleProducer)

	token, _, err := tm.GenerateToken("acc-1", "ravi@example.com", domain.RoleProducer)
	require.NoError(t, err)

	resp := doRequest(t, app, "Bearer "+token)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthMiddleware_RejectsWrongRole(t *testing.T) {
	tm := auth.NewTokenManager("unit-secret", 30)
	resolver := &stubResolver{tm: tm, byEmail: map[string]domain.User{
		"buyer@example.com": {ID: "u2", Email: "buyer@example.com", Role: domain.RoleBuyer},
	}}
	app := buildTestApp(resolver, domain.RoleProducer)

	token, _, err := tm.GenerateToken("acc-2", "buyer@example.com", domain.RoleBuyer)
	require.NoError(t, err)

	resp := doRequest(t, app, "Bearer "+token)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	tm := auth.NewTokenManager("unit-secret", 30)
	app := buildTestApp(&stubResolver{tm: tm}, domain.RoleProducer)

	resp := doRequest(t, app, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	tm := auth.NewTokenManager("unit-secret", 30)
	app := buildTestApp(&stubResolver{tm: tm}, domain.RoleProducer)

	resp := doRequest(t, app, "Bearer nonsense")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthMiddleware_ValidTokenWithoutProfile(t *testing.T) {
	tm := auth.NewTokenManager("unit-secret", 30)
	app := buildTestApp(&stubResolver{tm: tm, byEmail: map[string]domain.User{}})

	token, _, err := tm.GenerateToken("acc-3", "ghost@example.com", domain.RoleProducer)
	require.NoError(t, err)

	// Authenticated but unprovisioned: recoverable NOT_FOUND, not 401.
	resp := doRequest(t, app, "Bearer "+token)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
