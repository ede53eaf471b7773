package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/supportdesk/internal/auth"
	"github.com/spec-kit/supportdesk/internal/cache"
	"github.com/spec-kit/supportdesk/internal/domain"
	"github.com/spec-kit/supportdesk/internal/events"
	"github.com/spec-kit/supportdesk/internal/repository"
	apperrors "github.com/spec-kit/supportdesk/pkg/util/errorutil"
)

// MemberStats pairs a team member with their assigned-ticket counts.
type MemberStats struct {
	Member domain.Principal
	Counts domain.TicketCounts
}

// TeamService manages support roles and per-member ticket counts.
type TeamService struct {
	principals repository.PrincipalRepository
	tickets    repository.TicketRepository
	counts     cache.TicketCounts
	logger     *zap.Logger
}

// NewTeamService creates the service.
func NewTeamService(principals repository.PrincipalRepository, tickets repository.TicketRepository, counts cache.TicketCounts, logger *zap.Logger) *TeamService {
	if counts == nil {
		counts = cache.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeamService{principals: principals, tickets: tickets, counts: counts, logger: logger}
}

// ListMembers returns principals holding any support role.
func (s *TeamService) ListMembers(ctx context.Context) ([]domain.Principal, error) {
	members, err := s.principals.ListByRoles(ctx, auth.SupportRoles)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if members == nil {
		members = []domain.Principal{}
	}
	return members, nil
}

// AddMember grants role to the principal registered under email.
func (s *TeamService) AddMember(ctx context.Context, email string, role domain.Role) (*domain.Principal, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, apperrors.NewValidationError("email", "email is required")
	}
	principal, err := s.principals.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("user", map[string]any{"email": email})
		}
		return nil, apperrors.MapError(err)
	}
	return s.setSupportRole(ctx, principal, role)
}

// AssignRole replaces the support role of an existing principal.
func (s *TeamService) AssignRole(ctx context.Context, principalID int64, role domain.Role) (*domain.Principal, error) {
	principal, err := s.principals.GetByID(ctx, principalID)
	if err != nil {
		return nil, storeError(err, "user", principalID)
	}
	return s.setSupportRole(ctx, principal, role)
}

// setSupportRole keeps non-support roles and swaps every support role for role.
func (s *TeamService) setSupportRole(ctx context.Context, principal *domain.Principal, role domain.Role) (*domain.Principal, error) {
	if !auth.IsSupportRole(role) {
		return nil, apperrors.NewValidationError("role", "role must be one of administrator, support_manager, support_agent")
	}
	roles := []domain.Role{role}
	for _, r := range principal.Roles {
		if !auth.IsSupportRole(r) && r != role {
			roles = append(roles, r)
		}
	}
	if err := s.principals.SetRoles(ctx, principal.ID, roles); err != nil {
		return nil, storeError(err, "user", principal.ID)
	}
	principal.Roles = roles
	s.logger.Info("support role set", zap.Int64("principal_id", principal.ID), zap.String("role", string(role)))
	return principal, nil
}

// Stats returns each member's counts, read through the counts cache.
func (s *TeamService) Stats(ctx context.Context) ([]MemberStats, error) {
	members, err := s.ListMembers(ctx)
	if err != nil {
		return nil, err
	}
	stats := make([]MemberStats, 0, len(members))
	for _, member := range members {
		counts, err := s.CountsFor(ctx, member.ID)
		if err != nil {
			return nil, err
		}
		stats = append(stats, MemberStats{Member: member, Counts: counts})
	}
	return stats, nil
}

// CountsFor returns the cached counts for an assignee, filling the cache on a miss.
// Cache errors fall through to the store.
func (s *TeamService) CountsFor(ctx context.Context, assigneeID int64) (domain.TicketCounts, error) {
	counts, err := s.counts.Get(ctx, assigneeID)
	if err == nil {
		return counts, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("counts cache read failed", zap.Int64("assignee_id", assigneeID), zap.Error(err))
	}

	counts, err = s.tickets.CountsByAssignee(ctx, assigneeID)
	if err != nil {
		return domain.TicketCounts{}, apperrors.MapError(err)
	}
	if err := s.counts.Set(ctx, assigneeID, counts); err != nil {
		s.logger.Warn("counts cache write failed", zap.Int64("assignee_id", assigneeID), zap.Error(err))
	}
	return counts, nil
}

// RegisterHandlers invalidates the counts of exactly the principals a
// lifecycle event touched.
func (s *TeamService) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventTicketStatusChanged, s.invalidateForEvent)
	dispatcher.Subscribe(events.EventTicketAssigned, s.invalidateForEvent)
	dispatcher.Subscribe(events.EventTicketErased, s.invalidateForEvent)
}

func (s *TeamService) invalidateForEvent(ctx context.Context, event events.Event) error {
	ids := affectedPrincipals(event)
	if len(ids) == 0 {
		return nil
	}
	return s.counts.Invalidate(ctx, ids...)
}

func affectedPrincipals(event events.Event) []int64 {
	var ids []int64
	if event.Ticket.AssigneeID != nil {
		ids = append(ids, *event.Ticket.AssigneeID)
	}
	switch payload := event.Payload.(type) {
	case events.TicketAssignedPayload:
		if payload.Previous != nil {
			ids = append(ids, payload.Previous.ID)
		}
		if payload.Assignee != nil {
			ids = append(ids, payload.Assignee.ID)
		}
	case events.TicketErasedPayload:
		ids = append(ids, event.Ticket.OwnerID)
	}
	return ids
}
