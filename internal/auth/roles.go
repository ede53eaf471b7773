package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/supportdesk/pkg/util/errorutil"
)

// RequireAuthenticated ensures a principal is loaded.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}

// RequireOperation gates ticket-independent operation classes before the handler runs.
func RequireOperation(op Operation) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !Allow(principal, op, nil) {
			return apperrors.NewForbidden("insufficient capability")
		}
		return c.Next()
	}
}

// RequireAdmin ensures the principal holds manage_options.
func RequireAdmin() fiber.Handler {
	return RequireOperation(OpAdmin)
}
