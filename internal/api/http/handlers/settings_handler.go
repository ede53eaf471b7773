package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/supportdesk/internal/domain"
	"github.com/spec-kit/supportdesk/internal/service"
)

// SettingsHandler exposes the installation settings document to administrators.
type SettingsHandler struct {
	service *service.SettingsService
}

// NewSettingsHandler constructs handler.
func NewSettingsHandler(settings *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{service: settings}
}

// GetSettings GET /settings. The AI key is masked.
func (h *SettingsHandler) GetSettings(c *fiber.Ctx) error {
	settings, err := h.service.Load(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(service.Masked(*settings))
}

// ReplaceSettings POST /settings replaces the whole document.
func (h *SettingsHandler) ReplaceSettings(c *fiber.Ctx) error {
	var req domain.Settings
	if err := parseBody(c, &req); err != nil {
		return err
	}
	saved, err := h.service.Replace(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(service.Masked(*saved))
}
