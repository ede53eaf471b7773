package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/supportdesk/internal/ai"
	"github.com/spec-kit/supportdesk/internal/auth"
	"github.com/spec-kit/supportdesk/internal/domain"
	"github.com/spec-kit/supportdesk/internal/repository"
	apperrors "github.com/spec-kit/supportdesk/pkg/util/errorutil"
)

// ReplyGenerator is the AI adapter seen by the service.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, settings domain.AISettings, ticket domain.Ticket, thread []domain.Reply, authorNames map[int64]string) (string, error)
}

// ReplyAssistant loads a ticket thread and asks the AI adapter for a draft.
type ReplyAssistant struct {
	tickets    repository.TicketRepository
	replies    repository.ReplyRepository
	principals repository.PrincipalRepository
	generator  ReplyGenerator
	logger     *zap.Logger
}

// NewReplyAssistant creates the service.
func NewReplyAssistant(tickets repository.TicketRepository, replies repository.ReplyRepository, principals repository.PrincipalRepository, generator ReplyGenerator, logger *zap.Logger) *ReplyAssistant {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReplyAssistant{
		tickets:    tickets,
		replies:    replies,
		principals: principals,
		generator:  generator,
		logger:     logger,
	}
}

// Draft returns a suggested reply for ticketID. The settings check runs first,
// so nothing is loaded and no provider is called when AI is not configured.
func (s *ReplyAssistant) Draft(ctx context.Context, principal *domain.Principal, settings *domain.Settings, ticketID int64) (string, error) {
	if !auth.CanHandleTickets(principal) {
		return "", apperrors.NewForbidden("drafting replies requires a ticket-handling capability")
	}
	if !settings.AI.Enabled || settings.AI.APIKey == "" {
		return "", apperrors.NewNotConfigured("AI replies are disabled or no API key is configured")
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return "", storeError(err, "ticket", ticketID)
	}
	thread, err := s.replies.ListByTicket(ctx, ticketID, false)
	if err != nil {
		return "", apperrors.MapError(err)
	}

	text, err := s.generator.GenerateReply(ctx, settings.AI, *ticket, thread, s.authorNames(ctx, thread))
	if err != nil {
		if errors.Is(err, ai.ErrNotConfigured) {
			return "", apperrors.NewNotConfigured("AI replies are disabled or no API key is configured")
		}
		return "", apperrors.NewProviderError(string(settings.AI.Provider), err)
	}
	return text, nil
}

func (s *ReplyAssistant) authorNames(ctx context.Context, thread []domain.Reply) map[int64]string {
	names := make(map[int64]string)
	for _, reply := range thread {
		if _, ok := names[reply.AuthorID]; ok || reply.AuthorID == domain.AnonymousPrincipalID {
			continue
		}
		principal, err := s.principals.GetByID(ctx, reply.AuthorID)
		if err != nil {
			names[reply.AuthorID] = ""
			continue
		}
		names[reply.AuthorID] = principal.DisplayName
	}
	return names
}
