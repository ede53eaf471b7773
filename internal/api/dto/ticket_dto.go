package dto

import (
	"time"

	"github.com/spec-kit/supportdesk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Subject     string  `json:"subject"`
	Description string  `json:"description"`
	Category    *string `json:"category"`
	Priority    string  `json:"priority"`
}

// UpdateTicketRequest payload. Absent fields are left unchanged.
type UpdateTicketRequest struct {
	Status   *string `json:"status"`
	Priority *string `json:"priority"`
}

// AssignTicketRequest payload. A null or zero assignee unassigns.
type AssignTicketRequest struct {
	AssigneeID *int64 `json:"assignee_id"`
}

// CreateReplyRequest payload.
type CreateReplyRequest struct {
	Reply        string `json:"reply"`
	IsSystemNote bool   `json:"is_system_note"`
}

// TicketResponse is the wire form of a ticket.
type TicketResponse struct {
	ID            int64                 `json:"id"`
	OwnerID       int64                 `json:"owner_id"`
	AssigneeID    *int64                `json:"assignee_id"`
	Subject       string                `json:"subject"`
	Description   string                `json:"description"`
	Category      *string               `json:"category"`
	Priority      domain.TicketPriority `json:"priority"`
	Status        domain.TicketStatus   `json:"status"`
	CustomerName  string                `json:"customer_name"`
	CustomerEmail string                `json:"customer_email"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
	AnonymizedAt  *time.Time            `json:"anonymized_at,omitempty"`
}

// ReplyResponse is the wire form of a reply.
type ReplyResponse struct {
	ID           int64     `json:"id"`
	TicketID     int64     `json:"ticket_id"`
	AuthorID     int64     `json:"author_id"`
	Body         string    `json:"body"`
	IsSystemNote bool      `json:"is_system_note"`
	CreatedAt    time.Time `json:"created_at"`
}

// GenerateReplyRequest payload.
type GenerateReplyRequest struct {
	TicketID int64 `json:"ticket_id"`
}

// NewTicketResponse maps a ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:            t.ID,
		OwnerID:       t.OwnerID,
		AssigneeID:    t.AssigneeID,
		Subject:       t.Subject,
		Description:   t.Description,
		Category:      t.Category,
		Priority:      t.Priority,
		Status:        t.Status,
		CustomerName:  t.CustomerName,
		CustomerEmail: t.CustomerEmail,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
		AnonymizedAt:  t.AnonymizedAt,
	}
}

// NewTicketListResponse maps a slice; never nil.
func NewTicketListResponse(tickets []domain.Ticket) []TicketResponse {
	items := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, NewTicketResponse(&tickets[i]))
	}
	return items
}

// NewReplyListResponse maps a slice; never nil.
func NewReplyListResponse(replies []domain.Reply) []ReplyResponse {
	items := make([]ReplyResponse, 0, len(replies))
	for _, r := range replies {
		items = append(items, ReplyResponse{
			ID:           r.ID,
			TicketID:     r.TicketID,
			AuthorID:     r.AuthorID,
			Body:         r.Body,
			IsSystemNote: r.IsSystemNote,
			CreatedAt:    r.CreatedAt,
		})
	}
	return items
}
