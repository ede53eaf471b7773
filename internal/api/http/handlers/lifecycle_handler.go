package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/supportdesk/internal/api/dto"
	"github.com/spec-kit/supportdesk/internal/service"
)

// LifecycleHandler serves staff-side status, priority and assignment changes.
type LifecycleHandler struct {
	service  *service.LifecycleService
	settings *service.SettingsService
}

// NewLifecycleHandler constructs handler.
func NewLifecycleHandler(lifecycle *service.LifecycleService, settings *service.SettingsService) *LifecycleHandler {
	return &LifecycleHandler{service: lifecycle, settings: settings}
}

// UpdateTicket PATCH /tickets/:id.
func (h *LifecycleHandler) UpdateTicket(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	settings, err := h.settings.Load(c.UserContext())
	if err != nil {
		return err
	}
	ticket, err := h.service.UpdateFields(c.UserContext(), principal, settings, id, service.TicketFieldsInput{
		Status:   req.Status,
		Priority: req.Priority,
	})
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketResponse(ticket))
}

// AssignTicket PATCH /tickets/:id/assign.
func (h *LifecycleHandler) AssignTicket(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.AssignTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	assignee := req.AssigneeID
	if assignee != nil && *assignee == 0 {
		assignee = nil
	}
	settings, err := h.settings.Load(c.UserContext())
	if err != nil {
		return err
	}
	ticket, err := h.service.Assign(c.UserContext(), principal, settings, id, assignee)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "ticket": dto.NewTicketResponse(ticket)})
}
