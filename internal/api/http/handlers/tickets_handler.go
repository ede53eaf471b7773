package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/supportdesk/internal/api/dto"
	"github.com/spec-kit/supportdesk/internal/domain"
	"github.com/spec-kit/supportdesk/internal/service"
	apperrors "github.com/spec-kit/supportdesk/pkg/util/errorutil"
)

// TicketsHandler serves ticket and reply endpoints.
type TicketsHandler struct {
	service  *service.TicketService
	settings *service.SettingsService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, settings *service.SettingsService) *TicketsHandler {
	return &TicketsHandler{service: ticketService, settings: settings}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	settings, err := h.settings.Load(c.UserContext())
	if err != nil {
		return err
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), principal, settings, service.TicketCreateInput{
		Subject:     req.Subject,
		Description: req.Description,
		Category:    req.Category,
		Priority:    req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "ticket_id": ticket.ID})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	filter, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListTickets(c.UserContext(), principal, filter)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketListResponse(tickets))
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ticket, err := h.service.GetTicket(c.UserContext(), principal, id)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketResponse(ticket))
}

// CreateReply POST /tickets/:id/replies.
func (h *TicketsHandler) CreateReply(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.CreateReplyRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	reply, err := h.service.CreateReply(c.UserContext(), principal, id, req.Reply, req.IsSystemNote)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "reply_id": reply.ID})
}

// ListReplies GET /tickets/:id/replies. ?order=asc returns the thread oldest first.
func (h *TicketsHandler) ListReplies(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	chronological := strings.EqualFold(c.Query("order"), "asc")
	replies, err := h.service.ListReplies(c.UserContext(), principal, id, chronological)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewReplyListResponse(replies))
}

func parseTicketQuery(c *fiber.Ctx) (service.TicketListFilter, error) {
	filter := service.TicketListFilter{
		Limit:  c.QueryInt("limit", 0),
		Offset: c.QueryInt("offset", 0),
	}
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status, ok := domain.ParseTicketStatus(part)
			if !ok {
				return filter, apperrors.NewValidationError("status", "invalid status filter")
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	return filter, nil
}
