package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/supportdesk/internal/api/dto"
	"github.com/spec-kit/supportdesk/internal/domain"
	"github.com/spec-kit/supportdesk/internal/service"
)

// AuthHandler exposes registration, login and nonce refresh.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler builds handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{service: authService}
}

// Register POST /auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	principal, session, err := h.service.Register(c.UserContext(), req.Name, req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(sessionResponse(principal, session))
}

// Login POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	principal, session, err := h.service.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(sessionResponse(principal, session))
}

// Nonce GET /auth/nonce issues a fresh anti-forgery nonce for the session.
func (h *AuthHandler) Nonce(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	nonce, expiresAt, err := h.service.RefreshNonce(principal)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"nonce": nonce, "expires_at": expiresAt})
}

func sessionResponse(principal *domain.Principal, session *service.Session) dto.SessionResponse {
	return dto.SessionResponse{
		Token:     session.Token,
		Nonce:     session.Nonce,
		ExpiresAt: session.ExpiresAt,
		Principal: dto.NewPrincipalResponse(principal),
	}
}
