package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/supportdesk/internal/auth"
	"github.com/spec-kit/supportdesk/internal/domain"
	"github.com/spec-kit/supportdesk/internal/repository"
	apperrors "github.com/spec-kit/supportdesk/pkg/util/errorutil"
)

const maxSubjectLength = 255

// TicketService coordinates ticket and reply workflows.
type TicketService struct {
	tickets repository.TicketRepository
	replies repository.ReplyRepository
	logger  *zap.Logger
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	ReplyRepo  repository.ReplyRepository
	Logger     *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Subject     string
	Description string
	Category    *string
	// Priority is optional; the installation default applies when empty.
	Priority string
}

// TicketListFilter narrows a visibility-scoped listing.
type TicketListFilter struct {
	Statuses []domain.TicketStatus
	Limit    int
	Offset   int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets: deps.TicketRepo,
		replies: deps.ReplyRepo,
		logger:  logger,
	}
}

// CreateTicket creates a ticket owned by owner.
func (s *TicketService) CreateTicket(ctx context.Context, owner *domain.Principal, settings *domain.Settings, input TicketCreateInput) (*domain.Ticket, error) {
	if owner == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	subject := strings.TrimSpace(input.Subject)
	if subject == "" {
		return nil, apperrors.NewValidationError("subject", "subject is required")
	}
	if len(subject) > maxSubjectLength {
		return nil, apperrors.NewValidationError("subject", "subject must be at most 255 characters")
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, apperrors.NewValidationError("description", "description is required")
	}

	priority := settings.General.DefaultPriority
	if strings.TrimSpace(input.Priority) != "" {
		parsed, ok := domain.ParseTicketPriority(input.Priority)
		if !ok {
			return nil, apperrors.NewValidationError("priority", "priority must be one of low, normal, high, urgent")
		}
		priority = parsed
	}
	if _, ok := domain.ParseTicketPriority(string(priority)); !ok {
		priority = domain.TicketPriorityNormal
	}

	var category *string
	if input.Category != nil {
		if trimmed := strings.TrimSpace(*input.Category); trimmed != "" {
			category = &trimmed
		}
	}

	ticket := &domain.Ticket{
		OwnerID:       owner.ID,
		Subject:       subject,
		Description:   description,
		Category:      category,
		Priority:      priority,
		Status:        domain.TicketStatusNew,
		CustomerName:  owner.DisplayName,
		CustomerEmail: owner.Email,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return ticket, nil
}

// GetTicket fetches a ticket the principal may read. A ticket outside the
// principal's visibility is reported as not found.
func (s *TicketService) GetTicket(ctx context.Context, principal *domain.Principal, id int64) (*domain.Ticket, error) {
	if principal == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "ticket", id)
	}
	if !auth.CanReadTicket(principal, ticket) {
		return nil, storeError(repository.ErrNotFound, "ticket", id)
	}
	return ticket, nil
}

// ListTickets returns tickets visible to principal: everything for administrators,
// assigned/unassigned/owned for handlers, owned only for everyone else.
func (s *TicketService) ListTickets(ctx context.Context, principal *domain.Principal, filter TicketListFilter) ([]domain.Ticket, error) {
	if principal == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	repoFilter := repository.TicketFilter{
		Statuses: filter.Statuses,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	}
	applyVisibility(&repoFilter, principal)

	tickets, err := s.tickets.List(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return tickets, nil
}

func applyVisibility(filter *repository.TicketFilter, principal *domain.Principal) {
	switch {
	case auth.IsAdmin(principal):
	case auth.Allow(principal, auth.OpReadAll, nil):
		filter.HandlerID = &principal.ID
	default:
		filter.OwnerID = &principal.ID
	}
}

// CreateReply appends a reply to a ticket visible to author. isSystemNote is only
// honored for principals allowed to edit tickets.
func (s *TicketService) CreateReply(ctx context.Context, author *domain.Principal, ticketID int64, body string, isSystemNote bool) (*domain.Reply, error) {
	if author == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, storeError(err, "ticket", ticketID)
	}
	if !auth.CanReply(author, ticket) {
		return nil, storeError(repository.ErrNotFound, "ticket", ticketID)
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("reply", "reply body is required")
	}
	if isSystemNote && !auth.Allow(author, auth.OpWriteStatus, ticket) {
		isSystemNote = false
	}

	reply := &domain.Reply{
		TicketID:     ticket.ID,
		AuthorID:     author.ID,
		Body:         body,
		IsSystemNote: isSystemNote,
	}
	if err := s.replies.Create(ctx, reply); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return reply, nil
}

// ListReplies returns a ticket's thread, newest first unless chronological is set.
func (s *TicketService) ListReplies(ctx context.Context, principal *domain.Principal, ticketID int64, chronological bool) ([]domain.Reply, error) {
	if _, err := s.GetTicket(ctx, principal, ticketID); err != nil {
		return nil, err
	}
	replies, err := s.replies.ListByTicket(ctx, ticketID, !chronological)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if replies == nil {
		replies = []domain.Reply{}
	}
	return replies, nil
}
