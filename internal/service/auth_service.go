package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/quickqueue/helpdesk/internal/auth"
	"github.com/quickqueue/helpdesk/internal/config"
	"github.com/quickqueue/helpdesk/internal/domain"
	"github.com/quickqueue/helpdesk/internal/rbac"
	"github.com/quickqueue/helpdesk/internal/repository"
	apperrors "github.com/quickqueue/helpdesk/pkg/util"
)

const minPasswordLength = 8

// AuthService coordinates authentication and account management.
type AuthService struct {
	users     repository.UserRepository
	engine    *rbac.Engine
	tokenMgr  *auth.TokenManager
	seed      config.SeedConfig
	protected map[string]struct{}
}

// NewAuthService builds the service. The seed usernames become protected
// accounts that cannot be deleted.
func NewAuthService(cfg config.Config, users repository.UserRepository, engine *rbac.Engine) *AuthService {
	return &AuthService{
		users:    users,
		engine:   engine,
		tokenMgr: auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		seed:     cfg.Seed,
		protected: map[string]struct{}{
			cfg.Seed.AdminUsername: {},
			cfg.Seed.AgentUsername: {},
			cfg.Seed.UserUsername:  {},
		},
	}
}

// Authenticate verifies a credential pair. Absent user, password mismatch
// and inactive account all collapse into the same failure.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewInvalidCredentials()
		}
		return nil, apperrors.NewStorageUnavailable(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewInvalidCredentials()
	}
	if !user.Active {
		return nil, apperrors.NewInvalidCredentials()
	}
	return user, nil
}

// Login authenticates and issues a token.
func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.User, string, time.Time, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return user, token, exp, nil
}

// Register creates a self-service account with the user role.
func (s *AuthService) Register(ctx context.Context, username, fullName, email, password string) (*domain.User, error) {
	return s.createAccount(ctx, username, fullName, email, password, domain.RoleUser)
}

// RegisterInput carries admin-created account fields.
type RegisterInput struct {
	Username string
	FullName string
	Email    string
	Password string
	Role     domain.Role
}

// CreateUser provisions an account with an explicit role. Admin only.
func (s *AuthService) CreateUser(ctx context.Context, actor domain.Actor, input RegisterInput) (*domain.User, error) {
	if !s.engine.CanPerform(actor, rbac.ActionManageUsers, nil) {
		return nil, apperrors.NewPermissionDenied("user management requires admin access")
	}
	role := input.Role
	if role == "" {
		role = domain.RoleUser
	}
	if !role.Valid() {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": string(role)})
	}
	return s.createAccount(ctx, input.Username, input.FullName, input.Email, input.Password, role)
}

func (s *AuthService) createAccount(ctx context.Context, username, fullName, email, password string, role domain.Role) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperrors.NewValidationError("username required", nil)
	}
	if len(password) < minPasswordLength {
		return nil, apperrors.NewValidationError("password too short", map[string]any{"min_length": minPasswordLength})
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		Username:     username,
		FullName:     strings.TrimSpace(fullName),
		Email:        strings.TrimSpace(email),
		Role:         role,
		Active:       true,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("username already taken", map[string]any{"username": username})
		}
		return nil, apperrors.NewStorageUnavailable(err)
	}
	return user, nil
}

// UserUpdateInput is a partial account update; nil fields stay untouched.
type UserUpdateInput struct {
	FullName *string
	Email    *string
	Role     *domain.Role
	Active   *bool
}

// UpdateUser mutates role/active/profile fields. Admin only.
func (s *AuthService) UpdateUser(ctx context.Context, actor domain.Actor, id int64, input UserUpdateInput) (*domain.User, error) {
	if !s.engine.CanPerform(actor, rbac.ActionManageUsers, nil) {
		return nil, apperrors.NewPermissionDenied("user management requires admin access")
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": id})
		}
		return nil, apperrors.NewStorageUnavailable(err)
	}

	if input.Role != nil {
		if !input.Role.Valid() {
			return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": string(*input.Role)})
		}
		user.Role = *input.Role
	}
	if input.FullName != nil {
		user.FullName = strings.TrimSpace(*input.FullName)
	}
	if input.Email != nil {
		user.Email = strings.TrimSpace(*input.Email)
	}
	if input.Active != nil {
		user.Active = *input.Active
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.NewStorageUnavailable(err)
	}
	return user, nil
}

// DeactivateUser flips the active flag off. Admin only.
func (s *AuthService) DeactivateUser(ctx context.Context, actor domain.Actor, id int64) (*domain.User, error) {
	inactive := false
	return s.UpdateUser(ctx, actor, id, UserUpdateInput{Active: &inactive})
}

// DeleteUser removes an account. Seed accounts are refused.
func (s *AuthService) DeleteUser(ctx context.Context, actor domain.Actor, id int64) error {
	if !s.engine.CanPerform(actor, rbac.ActionManageUsers, nil) {
		return apperrors.NewPermissionDenied("user management requires admin access")
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFound("user", map[string]any{"id": id})
		}
		return apperrors.NewStorageUnavailable(err)
	}
	if _, protected := s.protected[user.Username]; protected {
		return apperrors.NewProtectedAccount(user.Username)
	}
	if _, err := s.users.Delete(ctx, id); err != nil {
		return apperrors.NewStorageUnavailable(err)
	}
	return nil
}

// ListUsers returns every account. Admin only.
func (s *AuthService) ListUsers(ctx context.Context, actor domain.Actor) ([]domain.User, error) {
	if !s.engine.CanPerform(actor, rbac.ActionManageUsers, nil) {
		return nil, apperrors.NewPermissionDenied("user management requires admin access")
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, apperrors.NewStorageUnavailable(err)
	}
	return users, nil
}

// ChangePassword verifies the current password before rotating it.
func (s *AuthService) ChangePassword(ctx context.Context, actor domain.Actor, currentPassword, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return apperrors.NewValidationError("password too short", map[string]any{"min_length": minPasswordLength})
	}
	user, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFound("user", nil)
		}
		return apperrors.NewStorageUnavailable(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		return apperrors.NewInvalidCredentials()
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		return apperrors.NewStorageUnavailable(err)
	}
	return nil
}

// SeedAccounts provisions the bootstrap identities when absent.
func (s *AuthService) SeedAccounts(ctx context.Context, logger *zap.Logger) error {
	seeds := []struct {
		username string
		password string
		fullName string
		role     domain.Role
	}{
		{s.seed.AdminUsername, s.seed.AdminPassword, "System Administrator", domain.RoleAdmin},
		{s.seed.AgentUsername, s.seed.AgentPassword, "Support Agent", domain.RoleAgent},
		{s.seed.UserUsername, s.seed.UserPassword, "Regular User", domain.RoleUser},
	}

	for _, seed := range seeds {
		if _, err := s.users.GetByUsername(ctx, seed.username); err == nil {
			continue
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		hash, err := auth.HashPassword(seed.password)
		if err != nil {
			return err
		}
		user := &domain.User{
			Username:     seed.username,
			FullName:     seed.fullName,
			Email:        seed.username + "@quickqueue.com",
			Role:         seed.role,
			Active:       true,
			PasswordHash: hash,
		}
		if err := s.users.Create(ctx, user); err != nil && !errors.Is(err, repository.ErrDuplicate) {
			return err
		}
		logger.Info("seeded account", zap.String("username", seed.username), zap.String("role", string(seed.role)))
	}
	return nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
