package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// AuthService coordinates login and credential flows.
type AuthService struct {
	core
	tokenMgr *auth.TokenManager
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps Dependencies) *AuthService {
	if deps.BcryptCost == 0 {
		deps.BcryptCost = cfg.Auth.BcryptCost
	}
	return &AuthService{
		core:     newCore(deps),
		tokenMgr: auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
	}
}

var errInvalidCredentials = apperrors.NewUnauthorized("invalid credentials")

// Login authenticates an active account and issues a session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, time.Time, error) {
	user, err := s.store.UserByEmail(strings.TrimSpace(email))
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeNotFound) {
			return nil, "", time.Time{}, errInvalidCredentials
		}
		return nil, "", time.Time{}, err
	}
	if !user.Active() {
		return nil, "", time.Time{}, errInvalidCredentials
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		s.logger.Info("login rejected", zap.String("user_id", user.ID))
		return nil, "", time.Time{}, errInvalidCredentials
	}
	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	return user, token, exp, nil
}

// Me returns the caller's current account record.
func (s *AuthService) Me(ctx context.Context, actor *domain.User) (*domain.User, error) {
	user, err := s.store.User(actor.ID)
	if err != nil {
		return nil, err
	}
	if !user.Active() {
		return nil, apperrors.NewUnauthorized("account is deactivated")
	}
	return user, nil
}

// ChangePassword verifies the current password before storing the new hash.
func (s *AuthService) ChangePassword(ctx context.Context, actor *domain.User, currentPassword, newPassword string) error {
	user, err := s.Me(ctx, actor)
	if err != nil {
		return err
	}
	if err := auth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		return apperrors.NewInvalidArgument("current password is incorrect", nil)
	}
	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return err
	}
	_, err = s.store.UpdateUser(ctx, actor.ID, func(u *domain.User) error {
		u.PasswordHash = hash
		u.UpdatedAt = s.now()
		return nil
	})
	return err
}

// ForgotPassword always acknowledges so that callers cannot probe which
// emails exist. Reset delivery is not wired; the request is only logged.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) {
	user, err := s.store.UserByEmail(strings.TrimSpace(email))
	if err != nil || !user.Active() {
		s.logger.Info("password reset requested for unknown account")
		return
	}
	s.logger.Info("password reset requested", zap.String("user_id", user.ID))
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
