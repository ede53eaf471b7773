package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/supportdesk/internal/domain"
	"github.com/spec-kit/supportdesk/internal/repository"
	apperrors "github.com/spec-kit/supportdesk/pkg/util/errorutil"
)

const (
	principalKey = "auth_principal"

	// NonceHeader carries the per-session anti-forgery token.
	NonceHeader = "X-Request-Nonce"
)

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens       *TokenManager
	principals   repository.PrincipalRepository
	requireNonce bool
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, principals repository.PrincipalRepository, requireNonce bool) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, principals: principals, requireNonce: requireNonce}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	principal, err := m.principals.GetByID(c.UserContext(), claims.PrincipalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewUnauthorized("principal not found")
		}
		return apperrors.MapError(err)
	}

	c.Locals(principalKey, principal)
	return c.Next()
}

// VerifyNonce rejects mutating requests without a valid anti-forgery nonce.
// It must run after Handle and before any handler logic.
func (m *AuthMiddleware) VerifyNonce(c *fiber.Ctx) error {
	if !m.requireNonce || isSafeMethod(c.Method()) {
		return c.Next()
	}
	principal, ok := PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	nonce := c.Get(NonceHeader)
	if nonce == "" {
		return apperrors.NewForbidden("missing request nonce")
	}
	if err := m.tokens.VerifyNonce(nonce, principal.ID); err != nil {
		return apperrors.NewForbidden("invalid request nonce")
	}
	return c.Next()
}

func isSafeMethod(method string) bool {
	switch method {
	case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
		return true
	}
	return false
}

// PrincipalFromContext retrieves the authenticated principal.
func PrincipalFromContext(c *fiber.Ctx) (*domain.Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*domain.Principal)
	return principal, ok && principal != nil
}
