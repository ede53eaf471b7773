package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/supportdesk/internal/auth"
	"github.com/spec-kit/supportdesk/internal/config"
	"github.com/spec-kit/supportdesk/internal/domain"
	"github.com/spec-kit/supportdesk/internal/repository"
	apperrors "github.com/spec-kit/supportdesk/pkg/util/errorutil"
)

// Session is returned on login: a bearer token plus the anti-forgery nonce.
type Session struct {
	Token     string
	Nonce     string
	ExpiresAt time.Time
}

// AuthService coordinates registration and login flows.
type AuthService struct {
	principals repository.PrincipalRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, principals repository.PrincipalRepository, tokens *auth.TokenManager, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		principals: principals,
		tokenMgr:   tokens,
		bcryptCost: cfg.BcryptCost,
		logger:     logger,
	}
}

// Register creates a customer account and opens a session for it.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*domain.Principal, *Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil, apperrors.NewValidationError("name", "name is required")
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return nil, nil, apperrors.NewValidationError("email", "email is not a valid address")
	}
	email = strings.ToLower(addr.Address)

	if _, err := s.principals.GetByEmail(ctx, email); err == nil {
		return nil, nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, nil, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			return nil, nil, apperrors.NewValidationError("password", "password must be at least 8 characters")
		}
		return nil, nil, apperrors.NewInternalError(err)
	}

	principal := &domain.Principal{
		DisplayName:  name,
		Email:        email,
		PasswordHash: hash,
		Roles:        []domain.Role{domain.RoleCustomer},
	}
	if err := s.principals.Create(ctx, principal); err != nil {
		return nil, nil, apperrors.NewInternalError(err)
	}
	s.logger.Info("principal registered", zap.Int64("principal_id", principal.ID))

	session, err := s.openSession(principal.ID)
	if err != nil {
		return nil, nil, err
	}
	return principal, session, nil
}

// Login authenticates by email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.Principal, *Session, error) {
	principal, err := s.principals.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, nil, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(principal.PasswordHash, password); err != nil {
		return nil, nil, apperrors.NewUnauthorized("invalid credentials")
	}
	session, err := s.openSession(principal.ID)
	if err != nil {
		return nil, nil, err
	}
	return principal, session, nil
}

// RefreshNonce issues a new anti-forgery nonce for an authenticated principal.
func (s *AuthService) RefreshNonce(principal *domain.Principal) (string, time.Time, error) {
	if principal == nil {
		return "", time.Time{}, apperrors.NewUnauthorized("authentication required")
	}
	nonce, exp, err := s.tokenMgr.GenerateNonce(principal.ID)
	if err != nil {
		return "", time.Time{}, apperrors.NewInternalError(err)
	}
	return nonce, exp, nil
}

func (s *AuthService) openSession(principalID int64) (*Session, error) {
	token, exp, err := s.tokenMgr.GenerateToken(principalID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	nonce, _, err := s.tokenMgr.GenerateNonce(principalID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &Session{Token: token, Nonce: nonce, ExpiresAt: exp}, nil
}
