package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew        TicketStatus = "NEW"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
)

// TicketStatuses lists every valid status.
var TicketStatuses = []TicketStatus{TicketStatusNew, TicketStatusInProgress, TicketStatusResolved}

// ParseTicketStatus normalizes case-insensitive input. ok is false for unknown values.
func ParseTicketStatus(raw string) (TicketStatus, bool) {
	candidate := TicketStatus(strings.ToUpper(strings.TrimSpace(raw)))
	for _, status := range TicketStatuses {
		if candidate == status {
			return status, true
		}
	}
	return "", false
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityNormal TicketPriority = "normal"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// TicketPriorities lists every valid priority.
var TicketPriorities = []TicketPriority{TicketPriorityLow, TicketPriorityNormal, TicketPriorityHigh, TicketPriorityUrgent}

// ParseTicketPriority normalizes case-insensitive input. ok is false for unknown values.
func ParseTicketPriority(raw string) (TicketPriority, bool) {
	candidate := TicketPriority(strings.ToLower(strings.TrimSpace(raw)))
	for _, priority := range TicketPriorities {
		if candidate == priority {
			return priority, true
		}
	}
	return "", false
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID            int64
	OwnerID       int64
	AssigneeID    *int64
	Subject       string
	Description   string
	Category      *string
	Priority      TicketPriority
	Status        TicketStatus
	CustomerName  string
	CustomerEmail string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	AnonymizedAt  *time.Time
}

// IsAssignedTo reports whether principalID is the current assignee.
func (t *Ticket) IsAssignedTo(principalID int64) bool {
	return t.AssigneeID != nil && *t.AssigneeID == principalID
}

// Reply is a message in a ticket thread. Replies are immutable once created.
type Reply struct {
	ID           int64
	TicketID     int64
	AuthorID     int64
	Body         string
	IsSystemNote bool
	CreatedAt    time.Time
}
