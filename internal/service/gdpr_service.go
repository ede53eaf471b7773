package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/supportdesk/internal/domain"
	"github.com/spec-kit/supportdesk/internal/events"
	"github.com/spec-kit/supportdesk/internal/observability"
	"github.com/spec-kit/supportdesk/internal/repository"
	apperrors "github.com/spec-kit/supportdesk/pkg/util/errorutil"
)

const gdprPageSize = 200

// RetentionPreview counts tickets a sweep would touch.
type RetentionPreview struct {
	Cutoff               time.Time `json:"cutoff"`
	EligibleNow          int       `json:"eligible_now"`
	EligibleWithinNotice int       `json:"eligible_within_notice"`
}

// GDPRService runs retention sweeps and per-principal export/erase.
type GDPRService struct {
	tickets    repository.TicketRepository
	replies    repository.ReplyRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// GDPRDependencies bundles repositories.
type GDPRDependencies struct {
	TicketRepo repository.TicketRepository
	ReplyRepo  repository.ReplyRepository
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Now        func() time.Time
}

// NewGDPRService creates the service.
func NewGDPRService(deps GDPRDependencies) *GDPRService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &GDPRService{
		tickets:    deps.TicketRepo,
		replies:    deps.ReplyRepo,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		now:        now,
	}
}

// Cutoff returns now minus the retention period, never less than the minimum period.
func (s *GDPRService) Cutoff(settings domain.RetentionSettings) time.Time {
	days := settings.RetentionDays
	if days < domain.MinRetentionDays {
		days = domain.MinRetentionDays
	}
	return s.now().AddDate(0, 0, -days)
}

// Sweep anonymizes or deletes every ticket created before the cutoff. A
// failing ticket is counted and logged; the pass continues with the rest.
func (s *GDPRService) Sweep(ctx context.Context, settings domain.RetentionSettings) (domain.SweepResult, error) {
	cutoff := s.Cutoff(settings)
	mode := domain.EraseModeDelete
	if settings.AnonymizeInsteadDelete {
		mode = domain.EraseModeAnonymize
	}

	candidates, err := s.collect(ctx, repository.TicketFilter{
		CreatedBefore:     &cutoff,
		ExcludeAnonymized: mode == domain.EraseModeAnonymize,
	})
	if err != nil {
		return domain.SweepResult{}, apperrors.MapError(err)
	}

	var result domain.SweepResult
	for i := range candidates {
		s.eraseInto(ctx, &candidates[i], mode, nil, &result)
	}

	s.logger.Info("retention sweep finished",
		zap.Time("cutoff", cutoff),
		zap.String("mode", string(mode)),
		zap.Int("processed", result.Processed),
		zap.Int("anonymized", result.Anonymized),
		zap.Int("deleted", result.Deleted),
		zap.Int("failed", result.Failed))
	return result, nil
}

// Preview counts tickets past the cutoff now, and those that will pass it
// within the notice window.
func (s *GDPRService) Preview(ctx context.Context, settings domain.RetentionSettings) (RetentionPreview, error) {
	cutoff := s.Cutoff(settings)
	notice := cutoff.AddDate(0, 0, settings.NotifyBeforeDays)
	exclude := settings.AnonymizeInsteadDelete

	now, err := s.tickets.Count(ctx, repository.TicketFilter{CreatedBefore: &cutoff, ExcludeAnonymized: exclude})
	if err != nil {
		return RetentionPreview{}, apperrors.MapError(err)
	}
	soon, err := s.tickets.Count(ctx, repository.TicketFilter{CreatedBefore: &notice, ExcludeAnonymized: exclude})
	if err != nil {
		return RetentionPreview{}, apperrors.MapError(err)
	}
	return RetentionPreview{Cutoff: cutoff, EligibleNow: now, EligibleWithinNotice: soon - now}, nil
}

// Export collects every ticket the principal owns and every reply they wrote.
func (s *GDPRService) Export(ctx context.Context, principal *domain.Principal) (*domain.DataExport, error) {
	if principal == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	owned, err := s.collect(ctx, repository.TicketFilter{OwnerID: &principal.ID})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	authored, err := s.replies.ListByAuthor(ctx, principal.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	export := &domain.DataExport{
		Principal: domain.ExportedPrincipal{
			ID:          principal.ID,
			DisplayName: principal.DisplayName,
			Email:       principal.Email,
		},
		Tickets:    make([]domain.ExportedTicket, 0, len(owned)),
		Replies:    make([]domain.ExportedReply, 0, len(authored)),
		ExportedAt: s.now(),
	}
	for _, t := range owned {
		export.Tickets = append(export.Tickets, domain.ExportedTicket{
			ID:          t.ID,
			Subject:     t.Subject,
			Description: t.Description,
			Category:    t.Category,
			Priority:    string(t.Priority),
			Status:      string(t.Status),
			CreatedAt:   t.CreatedAt,
			UpdatedAt:   t.UpdatedAt,
		})
	}
	for _, r := range authored {
		export.Replies = append(export.Replies, domain.ExportedReply{
			ID:           r.ID,
			TicketID:     r.TicketID,
			Body:         r.Body,
			IsSystemNote: r.IsSystemNote,
			CreatedAt:    r.CreatedAt,
		})
	}
	return export, nil
}

// Erase removes the principal's personal data with the sweep primitives:
// owned tickets are anonymized or deleted. Replies they wrote on other
// tickets, system notes included, are detached in both modes so those
// threads keep their history.
func (s *GDPRService) Erase(ctx context.Context, principal *domain.Principal, mode domain.EraseMode) (domain.SweepResult, error) {
	if principal == nil {
		return domain.SweepResult{}, apperrors.NewUnauthorized("authentication required")
	}
	if mode != domain.EraseModeAnonymize && mode != domain.EraseModeDelete {
		return domain.SweepResult{}, apperrors.NewValidationError("type", "type must be anonymize or delete")
	}

	owned, err := s.collect(ctx, repository.TicketFilter{OwnerID: &principal.ID})
	if err != nil {
		return domain.SweepResult{}, apperrors.MapError(err)
	}

	var result domain.SweepResult
	for i := range owned {
		s.eraseInto(ctx, &owned[i], mode, principal, &result)
	}

	if err := s.replies.ReassignAuthor(ctx, nil, principal.ID, domain.AnonymousPrincipalID); err != nil {
		return result, apperrors.MapError(err)
	}

	s.logger.Info("personal data erased",
		zap.Int64("principal_id", principal.ID),
		zap.String("mode", string(mode)),
		zap.Int("processed", result.Processed),
		zap.Int("failed", result.Failed))
	return result, nil
}

func (s *GDPRService) eraseInto(ctx context.Context, ticket *domain.Ticket, mode domain.EraseMode, actor *domain.Principal, result *domain.SweepResult) {
	result.Processed++
	if err := s.eraseTicket(ctx, ticket, mode, actor); err != nil {
		result.Failed++
		s.metrics.RecordSweep("failed", 1)
		s.logger.Error("failed to erase ticket",
			zap.Int64("ticket_id", ticket.ID),
			zap.String("mode", string(mode)),
			zap.Error(err))
		return
	}
	if mode == domain.EraseModeDelete {
		result.Deleted++
		s.metrics.RecordSweep("deleted", 1)
	} else {
		result.Anonymized++
		s.metrics.RecordSweep("anonymized", 1)
	}
}

// eraseTicket anonymizes the ticket and detaches the owner's replies, or deletes
// replies first and then the ticket. Cached lookups of the affected principals
// are invalidated through the erased event before it returns.
func (s *GDPRService) eraseTicket(ctx context.Context, ticket *domain.Ticket, mode domain.EraseMode, actor *domain.Principal) error {
	switch mode {
	case domain.EraseModeAnonymize:
		if err := s.tickets.Anonymize(ctx, ticket.ID, s.now()); err != nil {
			return err
		}
		ticketID := ticket.ID
		if err := s.replies.ReassignAuthor(ctx, &ticketID, ticket.OwnerID, domain.AnonymousPrincipalID); err != nil {
			return err
		}
	case domain.EraseModeDelete:
		if err := s.replies.DeleteByTicket(ctx, ticket.ID); err != nil {
			return err
		}
		if err := s.tickets.Delete(ctx, ticket.ID); err != nil {
			return err
		}
	}

	if s.dispatcher != nil {
		s.dispatcher.Publish(ctx, events.Event{
			Type:    events.EventTicketErased,
			Ticket:  *ticket,
			Actor:   actor,
			Payload: events.TicketErasedPayload{Mode: mode},
		})
	}
	return nil
}

// collect pages through every matching ticket before any of them is mutated.
func (s *GDPRService) collect(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	var all []domain.Ticket
	filter.Limit = gdprPageSize
	for offset := 0; ; offset += gdprPageSize {
		filter.Offset = offset
		page, err := s.tickets.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < gdprPageSize {
			return all, nil
		}
	}
}
