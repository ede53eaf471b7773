package domain

import "time"

// Capability is a named permission bit.
type Capability string

const (
	CapManageOptions  Capability = "manage_options"
	CapEditTickets    Capability = "edit_tickets"
	CapReplyToTickets Capability = "reply_to_tickets"
	CapViewAllTickets Capability = "view_all_tickets"
	CapAssignTickets  Capability = "assign_tickets"
)

// Role is a named bundle of capabilities.
type Role string

const (
	RoleAdministrator  Role = "administrator"
	RoleSupportManager Role = "support_manager"
	RoleSupportAgent   Role = "support_agent"
	RoleCustomer       Role = "customer"
)

// AnonymousPrincipalID replaces owner and author ids after GDPR anonymization.
const AnonymousPrincipalID int64 = 0

// Principal is an authenticated actor (customer or staff).
type Principal struct {
	ID           int64
	DisplayName  string
	Email        string
	PasswordHash string
	Roles        []Role
	CreatedAt    time.Time
}

// HasRole reports whether the principal holds role.
func (p *Principal) HasRole(role Role) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}
