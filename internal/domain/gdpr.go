package domain

import "time"

// EraseMode selects how personal data is removed.
type EraseMode string

const (
	EraseModeAnonymize EraseMode = "anonymize"
	EraseModeDelete    EraseMode = "delete"
)

// Placeholder values written over owner-identifying fields.
const (
	AnonymizedSubject = "[Anonymized Ticket]"
	AnonymizedName    = "Anonymous"
	AnonymizedEmail   = "anonymized@invalid.local"
)

// DataExport is the self-service export document for one principal.
type DataExport struct {
	Principal  ExportedPrincipal `json:"principal"`
	Tickets    []ExportedTicket  `json:"tickets"`
	Replies    []ExportedReply   `json:"replies"`
	ExportedAt time.Time         `json:"exported_at"`
}

// ExportedPrincipal carries identity fields only.
type ExportedPrincipal struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// ExportedTicket is the field selection exported for an owned ticket.
type ExportedTicket struct {
	ID          int64     `json:"id"`
	Subject     string    `json:"subject"`
	Description string    `json:"description"`
	Category    *string   `json:"category,omitempty"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ExportedReply is the field selection exported for an authored reply.
type ExportedReply struct {
	ID           int64     `json:"id"`
	TicketID     int64     `json:"ticket_id"`
	Body         string    `json:"body"`
	IsSystemNote bool      `json:"is_system_note"`
	CreatedAt    time.Time `json:"created_at"`
}

// SweepResult summarizes one retention pass.
type SweepResult struct {
	Processed  int `json:"processed"`
	Anonymized int `json:"anonymized"`
	Deleted    int `json:"deleted"`
	Failed     int `json:"failed"`
}

// TicketCounts aggregates tickets assigned to one principal.
type TicketCounts struct {
	Assigned   int `json:"assigned"`
	New        int `json:"new"`
	InProgress int `json:"in_progress"`
	Resolved   int `json:"resolved"`
}
