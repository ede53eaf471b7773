package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/supportdesk/internal/auth"
	"github.com/spec-kit/supportdesk/internal/domain"
	"github.com/spec-kit/supportdesk/internal/events"
	"github.com/spec-kit/supportdesk/internal/repository"
	apperrors "github.com/spec-kit/supportdesk/pkg/util/errorutil"
)

// LifecycleService owns status and assignment transitions and their side effects.
type LifecycleService struct {
	tickets    repository.TicketRepository
	replies    repository.ReplyRepository
	principals repository.PrincipalRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// LifecycleDependencies bundles repositories.
type LifecycleDependencies struct {
	TicketRepo    repository.TicketRepository
	ReplyRepo     repository.ReplyRepository
	PrincipalRepo repository.PrincipalRepository
	Dispatcher    events.Dispatcher
	Logger        *zap.Logger
}

// TicketFieldsInput holds the raw, optional field changes of an update.
type TicketFieldsInput struct {
	Status   *string
	Priority *string
}

// NewLifecycleService creates the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LifecycleService{
		tickets:    deps.TicketRepo,
		replies:    deps.ReplyRepo,
		principals: deps.PrincipalRepo,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// UpdateFields changes status and/or priority. Every value is validated before
// anything is written. A status change writes a system note and publishes a
// status event; setting the current status again, or changing only the
// priority, does neither.
func (s *LifecycleService) UpdateFields(ctx context.Context, actor *domain.Principal, settings *domain.Settings, ticketID int64, input TicketFieldsInput) (*domain.Ticket, error) {
	if !auth.Allow(actor, auth.OpWriteStatus, nil) {
		return nil, apperrors.NewForbidden("editing tickets requires the edit_tickets capability")
	}

	var update repository.TicketFieldsUpdate
	if input.Status != nil {
		status, ok := domain.ParseTicketStatus(*input.Status)
		if !ok {
			return nil, apperrors.NewValidationError("status", "status must be one of NEW, IN_PROGRESS, RESOLVED")
		}
		update.Status = &status
	}
	if input.Priority != nil {
		priority, ok := domain.ParseTicketPriority(*input.Priority)
		if !ok {
			return nil, apperrors.NewValidationError("priority", "priority must be one of low, normal, high, urgent")
		}
		update.Priority = &priority
	}
	if update.Status == nil && update.Priority == nil {
		return nil, apperrors.NewValidationError("status", "status or priority is required")
	}

	before, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, storeError(err, "ticket", ticketID)
	}
	if err := s.tickets.UpdateFields(ctx, ticketID, update); err != nil {
		return nil, storeError(err, "ticket", ticketID)
	}
	after, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, storeError(err, "ticket", ticketID)
	}

	if update.Status != nil && *update.Status != before.Status {
		// The update is committed; its side effects outlive a disconnected client.
		sideCtx := context.WithoutCancel(ctx)
		s.writeSystemNote(sideCtx, actor, ticketID,
			fmt.Sprintf("Status changed from %s to %s", before.Status, after.Status))
		s.publish(sideCtx, events.Event{
			Type:     events.EventTicketStatusChanged,
			Ticket:   *after,
			Actor:    actor,
			Settings: settings,
			Payload: events.TicketStatusChangedPayload{
				OldStatus: before.Status,
				NewStatus: after.Status,
			},
		})
	}
	return after, nil
}

// Assign sets or clears the assignee. A non-nil assignee must exist and hold a
// ticket-handling capability; the check runs before anything is written.
func (s *LifecycleService) Assign(ctx context.Context, actor *domain.Principal, settings *domain.Settings, ticketID int64, assigneeID *int64) (*domain.Ticket, error) {
	if !auth.Allow(actor, auth.OpAssign, nil) {
		return nil, apperrors.NewForbidden("assigning tickets requires the assign_tickets capability")
	}

	var assignee *domain.Principal
	if assigneeID != nil {
		candidate, err := s.principals.GetByID(ctx, *assigneeID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperrors.NewValidationError("assignee_id", "assignee does not exist")
			}
			return nil, apperrors.MapError(err)
		}
		if !auth.CanHandleTickets(candidate) {
			return nil, apperrors.NewValidationError("assignee_id", "assignee cannot handle tickets")
		}
		assignee = candidate
	}

	before, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, storeError(err, "ticket", ticketID)
	}
	previous := s.lookupPrincipal(ctx, before.AssigneeID)

	if err := s.tickets.UpdateAssignee(ctx, ticketID, assigneeID); err != nil {
		return nil, storeError(err, "ticket", ticketID)
	}
	after, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, storeError(err, "ticket", ticketID)
	}

	note := assignmentNote(previous, assignee, actor)
	if note == "" {
		return after, nil
	}
	sideCtx := context.WithoutCancel(ctx)
	s.writeSystemNote(sideCtx, actor, ticketID, note)
	s.publish(sideCtx, events.Event{
		Type:     events.EventTicketAssigned,
		Ticket:   *after,
		Actor:    actor,
		Settings: settings,
		Payload: events.TicketAssignedPayload{
			Previous: previous,
			Assignee: assignee,
		},
	})
	return after, nil
}

// assignmentNote renders the system note for an assignee change. The
// reassigned/assigned split is the same comparison the notification
// handler uses to pick reassignment or assignment.
func assignmentNote(previous, assignee, actor *domain.Principal) string {
	switch {
	case assignee == nil && previous == nil:
		return ""
	case assignee == nil:
		return fmt.Sprintf("Ticket unassigned from %s by %s", DisplayName(previous), DisplayName(actor))
	case IsReassignment(previous, assignee):
		return fmt.Sprintf("Ticket reassigned from %s to %s by %s",
			DisplayName(previous), DisplayName(assignee), DisplayName(actor))
	default:
		return fmt.Sprintf("Ticket assigned to %s", DisplayName(assignee))
	}
}

// IsReassignment reports whether a previous assignee existed and differs from the new one.
func IsReassignment(previous, assignee *domain.Principal) bool {
	return previous != nil && assignee != nil && previous.ID != assignee.ID
}

// DisplayName renders a principal for notes and emails.
func DisplayName(p *domain.Principal) string {
	if p == nil {
		return "Unknown"
	}
	if name := strings.TrimSpace(p.DisplayName); name != "" {
		return name
	}
	return fmt.Sprintf("User #%d", p.ID)
}

// lookupPrincipal resolves an optional id. A principal that no longer exists is
// kept as an id-only stub so notes can still name it.
func (s *LifecycleService) lookupPrincipal(ctx context.Context, id *int64) *domain.Principal {
	if id == nil {
		return nil
	}
	principal, err := s.principals.GetByID(ctx, *id)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("failed to load principal", zap.Int64("principal_id", *id), zap.Error(err))
		}
		return &domain.Principal{ID: *id}
	}
	return principal
}

// writeSystemNote is best-effort: a failure is logged and the transition stands.
func (s *LifecycleService) writeSystemNote(ctx context.Context, actor *domain.Principal, ticketID int64, body string) {
	reply := &domain.Reply{
		TicketID:     ticketID,
		AuthorID:     actor.ID,
		Body:         body,
		IsSystemNote: true,
	}
	if err := s.replies.Create(ctx, reply); err != nil {
		s.logger.Error("failed to write system note",
			zap.Int64("ticket_id", ticketID),
			zap.Int64("actor_id", actor.ID),
			zap.Error(err))
	}
}

func (s *LifecycleService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Publish(ctx, event)
}
