package repository

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/supportdesk/internal/domain"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// TicketFilter narrows ticket listings. All set fields are AND-ed.
type TicketFilter struct {
	// OwnerID restricts to tickets created by the principal.
	OwnerID *int64
	// HandlerID applies handler visibility: assigned to the principal,
	// unassigned, or owned by the principal.
	HandlerID         *int64
	AssigneeID        *int64
	Statuses          []domain.TicketStatus
	CreatedBefore     *time.Time
	ExcludeAnonymized bool
	Limit             int
	Offset            int
}

// TicketFieldsUpdate carries optional single-row field changes.
type TicketFieldsUpdate struct {
	Status   *domain.TicketStatus
	Priority *domain.TicketPriority
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Count(ctx context.Context, filter TicketFilter) (int, error)
	UpdateFields(ctx context.Context, id int64, update TicketFieldsUpdate) error
	UpdateAssignee(ctx context.Context, id int64, assigneeID *int64) error
	Anonymize(ctx context.Context, id int64, at time.Time) error
	Delete(ctx context.Context, id int64) error
	CountsByAssignee(ctx context.Context, assigneeID int64) (domain.TicketCounts, error)
}

// ReplyRepository manages ticket thread replies.
type ReplyRepository interface {
	Create(ctx context.Context, reply *domain.Reply) error
	ListByTicket(ctx context.Context, ticketID int64, newestFirst bool) ([]domain.Reply, error)
	// ListByAuthor includes system notes written as the principal.
	ListByAuthor(ctx context.Context, authorID int64) ([]domain.Reply, error)
	DeleteByTicket(ctx context.Context, ticketID int64) error
	// ReassignAuthor moves replies by fromID to toID; ticketID nil means every ticket.
	ReassignAuthor(ctx context.Context, ticketID *int64, fromID, toID int64) error
}

// PrincipalRepository reads identities and role assignments from the host.
type PrincipalRepository interface {
	Create(ctx context.Context, principal *domain.Principal) error
	GetByID(ctx context.Context, id int64) (*domain.Principal, error)
	GetByEmail(ctx context.Context, email string) (*domain.Principal, error)
	ListByRoles(ctx context.Context, roles []domain.Role) ([]domain.Principal, error)
	SetRoles(ctx context.Context, id int64, roles []domain.Role) error
}

// SettingsRepository persists the installation settings document.
type SettingsRepository interface {
	Load(ctx context.Context) (*domain.Settings, error)
	Save(ctx context.Context, settings *domain.Settings) error
}
