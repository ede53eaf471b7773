package auth

import "github.com/spec-kit/supportdesk/internal/domain"

// Operation is a class of action checked by the gate.
type Operation string

const (
	OpReadOwn     Operation = "read_own"
	OpReadAll     Operation = "read_all"
	OpWriteStatus Operation = "write_status"
	OpAssign      Operation = "assign"
	OpAdmin       Operation = "admin"
)

// Allow decides whether p may perform op, optionally against ticket.
// It has no side effects; manage_options short-circuits every check.
func Allow(p *domain.Principal, op Operation, ticket *domain.Ticket) bool {
	if p == nil {
		return false
	}
	caps := CapabilitiesOf(p)
	if caps.Has(domain.CapManageOptions) {
		return true
	}

	switch op {
	case OpReadAll:
		return caps.HasAny(domain.CapViewAllTickets, domain.CapEditTickets, domain.CapReplyToTickets)
	case OpReadOwn:
		if ticket == nil {
			return false
		}
		return ticket.OwnerID == p.ID || ticket.IsAssignedTo(p.ID)
	case OpWriteStatus:
		return caps.Has(domain.CapEditTickets)
	case OpAssign:
		return caps.HasAny(domain.CapAssignTickets, domain.CapEditTickets)
	default:
		return false
	}
}

// CanReadTicket applies the read rules: handlers see every ticket, others only
// tickets they own or are assigned to.
func CanReadTicket(p *domain.Principal, ticket *domain.Ticket) bool {
	return Allow(p, OpReadAll, ticket) || Allow(p, OpReadOwn, ticket)
}

// CanReply allows any authenticated principal to reply to a ticket visible to them.
func CanReply(p *domain.Principal, ticket *domain.Ticket) bool {
	return p != nil && CanReadTicket(p, ticket)
}

// CanHandleTickets reports whether p qualifies as an assignee.
func CanHandleTickets(p *domain.Principal) bool {
	return CapabilitiesOf(p).HasAny(domain.CapEditTickets, domain.CapReplyToTickets, domain.CapManageOptions)
}

// IsAdmin reports whether p holds manage_options.
func IsAdmin(p *domain.Principal) bool {
	return Allow(p, OpAdmin, nil)
}
