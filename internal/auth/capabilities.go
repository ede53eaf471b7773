package auth

import "github.com/spec-kit/supportdesk/internal/domain"

// CapabilitySet is the effective permission set of a principal.
type CapabilitySet map[domain.Capability]struct{}

// Has reports whether the set contains c.
func (s CapabilitySet) Has(c domain.Capability) bool {
	_, ok := s[c]
	return ok
}

// HasAny reports whether the set contains at least one of caps.
func (s CapabilitySet) HasAny(caps ...domain.Capability) bool {
	for _, c := range caps {
		if s.Has(c) {
			return true
		}
	}
	return false
}

var roleCapabilities = map[domain.Role][]domain.Capability{
	domain.RoleAdministrator: {
		domain.CapManageOptions,
		domain.CapEditTickets,
		domain.CapReplyToTickets,
		domain.CapViewAllTickets,
		domain.CapAssignTickets,
	},
	domain.RoleSupportManager: {
		domain.CapEditTickets,
		domain.CapReplyToTickets,
		domain.CapViewAllTickets,
		domain.CapAssignTickets,
	},
	domain.RoleSupportAgent: {
		domain.CapReplyToTickets,
		domain.CapViewAllTickets,
	},
	domain.RoleCustomer: {},
}

// SupportRoles are the roles managed through the team-members endpoints.
var SupportRoles = []domain.Role{domain.RoleAdministrator, domain.RoleSupportManager, domain.RoleSupportAgent}

// IsKnownRole reports whether role is registered.
func IsKnownRole(role domain.Role) bool {
	_, ok := roleCapabilities[role]
	return ok
}

// IsSupportRole reports whether role is one of SupportRoles.
func IsSupportRole(role domain.Role) bool {
	for _, r := range SupportRoles {
		if r == role {
			return true
		}
	}
	return false
}

// CapabilitiesFor unions the capabilities of roles. Unknown roles grant nothing.
func CapabilitiesFor(roles ...domain.Role) CapabilitySet {
	set := CapabilitySet{}
	for _, role := range roles {
		for _, c := range roleCapabilities[role] {
			set[c] = struct{}{}
		}
	}
	return set
}

// CapabilitiesOf returns the effective capabilities of p.
func CapabilitiesOf(p *domain.Principal) CapabilitySet {
	if p == nil {
		return CapabilitySet{}
	}
	return CapabilitiesFor(p.Roles...)
}
