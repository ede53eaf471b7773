package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/supportdesk/internal/api/dto"
	"github.com/spec-kit/supportdesk/internal/service"
	apperrors "github.com/spec-kit/supportdesk/pkg/util/errorutil"
)

// AIHandler serves reply suggestions.
type AIHandler struct {
	assistant *service.ReplyAssistant
	settings  *service.SettingsService
}

// NewAIHandler constructs handler.
func NewAIHandler(assistant *service.ReplyAssistant, settings *service.SettingsService) *AIHandler {
	return &AIHandler{assistant: assistant, settings: settings}
}

// GenerateReply POST /ai/generate-reply.
func (h *AIHandler) GenerateReply(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.GenerateReplyRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.TicketID <= 0 {
		return apperrors.NewValidationError("ticket_id", "ticket_id is required")
	}
	settings, err := h.settings.Load(c.UserContext())
	if err != nil {
		return err
	}
	reply, err := h.assistant.Draft(c.UserContext(), principal, settings, req.TicketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "reply": reply})
}
