package service

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/agrilink/sourcing-service/internal/auth"
	"github.com/agrilink/sourcing-service/internal/config"
	"github.com/agrilink/sourcing-service/internal/domain"
	"github.com/agrilink/sourcing-service/internal/repository"
	"github.com/agrilink/sourcing-service/pkg/util"
)

// Session is the tagged result of an authenticate operation. Either
// Authenticated is false and all other fields are zero, or it is true and
// principal, role and profile are all resolved. There is no intermediate
// state carrying a principal without a role.
type Session struct {
	Authenticated bool
	AccountID     string
	Email         string
	Role          domain.Role
	Profile       *domain.User
	Token         string
	ExpiresAt     time.Time
}

// SignupInput captures the registration payload.
type SignupInput struct {
	Email       string
	Password    string
	Role        domain.Role
	Name        string
	Contact     string
	Description string
}

// AuthService owns sessions and identity resolution: it maps credentials to
// accounts, accounts to profiles and roles, and handles the two-phase
// account-then-profile signup.
type AuthService struct {
	accounts   repository.AccountRepository
	users      repository.UserRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	AccountRepo repository.AccountRepository
	UserRepo    repository.UserRepository
	Logger      *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		accounts:   deps.AccountRepo,
		users:      deps.UserRepo,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost: cfg.Auth.BcryptCost,
		logger:     deps.Logger,
	}
}

// Signup creates the credential account and then provisions the profile.
// The two writes are not atomic: when the profile write fails the account
// stays flagged unprovisioned and the next login retries provisioning from
// the seed stored on the account, instead of losing the account-role linkage.
func (s *AuthService) Signup(ctx context.Context, input SignupInput) (*Session, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.Password == "" {
		return nil, util.NewValidationError("email and password required", nil)
	}
	role := input.Role
	if role == "" {
		role = domain.RoleProducer
	}
	if !role.Valid() {
		return nil, util.NewValidationError("unknown role", map[string]any{"role": role})
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}

	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		return nil, util.NewConflict("email already registered", map[string]any{"email": email})
	} else if err != pgx.ErrNoRows {
		return nil, util.MapError(err)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, util.MapError(err)
	}

	account := &domain.Account{
		Email:        email,
		PasswordHash: hash,
		Seed: domain.ProfileSeed{
			Name:        name,
			Contact:     strings.TrimSpace(input.Contact),
			Description: strings.TrimSpace(input.Description),
			Role:        role,
		},
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, util.MapError(err)
	}

	profile, err := s.provision(ctx, account)
	if err != nil {
		// Account exists but the profile write failed. Flag it loudly; the
		// account remains unprovisioned and login will retry.
		s.logger.Error("profile provisioning failed after account creation",
			zap.String("email", email), zap.Error(err))
		return nil, util.NewDomainError("PROVISIONING_INCOMPLETE",
			"account created but profile provisioning failed; retry by logging in",
			500, map[string]any{"email": email})
	}

	return s.sessionFor(account, profile)
}

// Login authenticates credentials and returns an authenticated session with
// the role already resolved. An unprovisioned account is provisioned here,
// idempotently, from the seed captured at signup.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, util.NewUnauthorized("invalid credentials")
		}
		return nil, util.MapError(err)
	}
	if err := auth.ComparePassword(account.PasswordHash, password); err != nil {
		return nil, util.NewUnauthorized("invalid credentials")
	}

	profile, err := s.provision(ctx, account)
	if err != nil {
		return nil, util.MapError(err)
	}
	return s.sessionFor(account, profile)
}

// Authenticate resolves a bearer token into a session. Any token failure
// yields an unauthenticated session rather than an error; a missing profile
// for a valid token is surfaced as NOT_FOUND since it is recoverable.
func (s *AuthService) Authenticate(ctx context.Context, tokenStr string) (*Session, error) {
	if tokenStr == "" {
		return &Session{}, nil
	}
	claims, err := s.tokenMgr.ParseToken(tokenStr)
	if err != nil {
		return &Session{}, nil
	}

	profile, err := s.ResolveRole(ctx, claims.Email)
	if err != nil {
		return nil, err
	}
	return &Session{
		Authenticated: true,
		AccountID:     claims.AccountID,
		Email:         profile.Email,
		Role:          profile.Role,
		Profile:       profile,
	}, nil
}

// ResolvePrincipal adapts Authenticate for the HTTP middleware: a token that
// does not authenticate yields a nil principal, an authenticated token with a
// missing profile surfaces NOT_FOUND.
func (s *AuthService) ResolvePrincipal(ctx context.Context, tokenStr string) (*auth.Principal, error) {
	session, err := s.Authenticate(ctx, tokenStr)
	if err != nil {
		return nil, err
	}
	if !session.Authenticated {
		return nil, nil
	}
	return &auth.Principal{
		AccountID: session.AccountID,
		Email:     session.Email,
		Role:      session.Role,
		Profile:   session.Profile,
	}, nil
}

// ResolveRole looks up the profile and role for an authenticated email.
func (s *AuthService) ResolveRole(ctx context.Context, email string) (*domain.User, error) {
	profile, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, util.NewNotFound("profile", map[string]any{"email": email})
		}
		return nil, util.MapError(err)
	}
	return profile, nil
}

// ChangePassword verifies the current password before storing a new hash.
func (s *AuthService) ChangePassword(ctx context.Context, email, currentPassword, newPassword string) error {
	if newPassword == "" {
		return util.NewValidationError("new password required", nil)
	}
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if err == pgx.ErrNoRows {
			return util.NewNotFound("account", nil)
		}
		return util.MapError(err)
	}
	if err := auth.ComparePassword(account.PasswordHash, currentPassword); err != nil {
		return util.NewUnauthorized("invalid credentials")
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return util.MapError(err)
	}
	return util.MapError(s.accounts.UpdatePassword(ctx, account.ID, hash))
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// provision ensures the profile row for an account exists and the account is
// flagged provisioned. Safe to call repeatedly: an existing profile is reused.
func (s *AuthService) provision(ctx context.Context, account *domain.Account) (*domain.User, error) {
	profile, err := s.users.GetByEmail(ctx, account.Email)
	if err == nil {
		if !account.Provisioned {
			if markErr := s.accounts.MarkProvisioned(ctx, account.ID); markErr != nil {
				return nil, markErr
			}
			account.Provisioned = true
		}
		return profile, nil
	}
	if err != pgx.ErrNoRows {
		return nil, err
	}

	profile = &domain.User{
		Email:       account.Email,
		Name:        account.Seed.Name,
		Contact:     account.Seed.Contact,
		Description: account.Seed.Description,
		Role:        account.Seed.Role,
	}
	if err := s.users.Create(ctx, profile); err != nil {
		return nil, err
	}
	if err := s.accounts.MarkProvisioned(ctx, account.ID); err != nil {
		return nil, err
	}
	account.Provisioned = true
	s.logger.Info("profile provisioned", zap.String("email", account.Email), zap.String("role", string(profile.Role)))
	return profile, nil
}

func (s *AuthService) sessionFor(account *domain.Account, profile *domain.User) (*Session, error) {
	token, exp, err := s.tokenMgr.GenerateToken(account.ID, account.Email, profile.Role)
	if err != nil {
		return nil, util.MapError(err)
	}
	return &Session{
		Authenticated: true,
		AccountID:     account.ID,
		Email:         account.Email,
		Role:          profile.Role,
		Profile:       profile,
		Token:         token,
		ExpiresAt:     exp,
	}, nil
}
