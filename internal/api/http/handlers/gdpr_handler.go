package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/supportdesk/internal/api/dto"
	"github.com/spec-kit/supportdesk/internal/domain"
	"github.com/spec-kit/supportdesk/internal/service"
	apperrors "github.com/spec-kit/supportdesk/pkg/util/errorutil"
)

// GDPRHandler serves self-service data rights and retention administration.
type GDPRHandler struct {
	service  *service.GDPRService
	settings *service.SettingsService
}

// NewGDPRHandler constructs handler.
func NewGDPRHandler(gdpr *service.GDPRService, settings *service.SettingsService) *GDPRHandler {
	return &GDPRHandler{service: gdpr, settings: settings}
}

// ExportMyData GET /gdpr/my-data.
func (h *GDPRHandler) ExportMyData(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	export, err := h.service.Export(c.UserContext(), principal)
	if err != nil {
		return err
	}
	return c.JSON(export)
}

// EraseMyData DELETE /gdpr/my-data?type=anonymize|delete.
func (h *GDPRHandler) EraseMyData(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	mode := domain.EraseMode(strings.ToLower(c.Query("type", string(domain.EraseModeAnonymize))))
	if mode != domain.EraseModeAnonymize && mode != domain.EraseModeDelete {
		return apperrors.NewValidationError("type", "type must be anonymize or delete")
	}
	result, err := h.service.Erase(c.UserContext(), principal, mode)
	if err != nil {
		return err
	}
	return c.JSON(dto.CleanupResponse{Success: true, SweepResult: result})
}

// GetRetention GET /gdpr/data-retention.
func (h *GDPRHandler) GetRetention(c *fiber.Ctx) error {
	settings, err := h.settings.Load(c.UserContext())
	if err != nil {
		return err
	}
	return h.retentionResponse(c, settings.Retention)
}

// UpdateRetention POST /gdpr/data-retention replaces the retention section only.
func (h *GDPRHandler) UpdateRetention(c *fiber.Ctx) error {
	var req domain.RetentionSettings
	if err := parseBody(c, &req); err != nil {
		return err
	}
	settings, err := h.settings.Load(c.UserContext())
	if err != nil {
		return err
	}
	next := *settings
	next.Retention = req
	saved, err := h.settings.Replace(c.UserContext(), next)
	if err != nil {
		return err
	}
	return h.retentionResponse(c, saved.Retention)
}

// Cleanup POST /gdpr/cleanup runs the retention sweep now.
func (h *GDPRHandler) Cleanup(c *fiber.Ctx) error {
	settings, err := h.settings.Load(c.UserContext())
	if err != nil {
		return err
	}
	if !settings.Retention.Enabled {
		return apperrors.NewNotConfigured("data retention is disabled")
	}
	result, err := h.service.Sweep(c.UserContext(), settings.Retention)
	if err != nil {
		return err
	}
	return c.JSON(dto.CleanupResponse{Success: true, SweepResult: result})
}

func (h *GDPRHandler) retentionResponse(c *fiber.Ctx, retention domain.RetentionSettings) error {
	preview, err := h.service.Preview(c.UserContext(), retention)
	if err != nil {
		return err
	}
	return c.JSON(dto.RetentionResponse{
		RetentionSettings:    retention,
		EligibleNow:          preview.EligibleNow,
		EligibleWithinNotice: preview.EligibleWithinNotice,
	})
}
