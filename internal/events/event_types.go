package events

import (
	"time"

	"github.com/spec-kit/supportdesk/internal/domain"
)

// EventType enumerates supported event identifiers. The set is closed.
type EventType string

const (
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketErased        EventType = "ticket_erased"
)

// Event represents a lifecycle transition emitted by services.
type Event struct {
	ID        string
	Type      EventType
	Ticket    domain.Ticket
	// Actor is nil for scheduled work such as the retention sweep.
	Actor     *domain.Principal
	Settings  *domain.Settings
	Timestamp time.Time
	Payload   interface{}
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus
	NewStatus domain.TicketStatus
}

// TicketAssignedPayload payload. Previous and Assignee are nil when absent.
type TicketAssignedPayload struct {
	Previous *domain.Principal
	Assignee *domain.Principal
}

// TicketErasedPayload payload. Ticket on the event holds the pre-erase snapshot.
type TicketErasedPayload struct {
	Mode domain.EraseMode
}
