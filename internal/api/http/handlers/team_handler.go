package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/supportdesk/internal/api/dto"
	"github.com/spec-kit/supportdesk/internal/service"
)

// TeamHandler manages support team membership.
type TeamHandler struct {
	service *service.TeamService
}

// NewTeamHandler constructs handler.
func NewTeamHandler(team *service.TeamService) *TeamHandler {
	return &TeamHandler{service: team}
}

// ListMembers GET /team-members.
func (h *TeamHandler) ListMembers(c *fiber.Ctx) error {
	members, err := h.service.ListMembers(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.PrincipalResponse, 0, len(members))
	for i := range members {
		items = append(items, dto.NewPrincipalResponse(&members[i]))
	}
	return c.JSON(items)
}

// AddMember POST /team-members.
func (h *TeamHandler) AddMember(c *fiber.Ctx) error {
	var req dto.AddTeamMemberRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	member, err := h.service.AddMember(c.UserContext(), req.Email, req.Role)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewPrincipalResponse(member))
}

// Stats GET /team-members/stats.
func (h *TeamHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.TeamMemberStatsResponse, 0, len(stats))
	for i := range stats {
		items = append(items, dto.TeamMemberStatsResponse{
			PrincipalResponse: dto.NewPrincipalResponse(&stats[i].Member),
			TicketCounts:      stats[i].Counts,
		})
	}
	return c.JSON(items)
}

// AssignRole POST /team-members/:id/assign-role.
func (h *TeamHandler) AssignRole(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.AssignRoleRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	member, err := h.service.AssignRole(c.UserContext(), id, req.Role)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewPrincipalResponse(member))
}
