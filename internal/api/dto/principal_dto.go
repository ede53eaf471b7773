package dto

import (
	"time"

	"github.com/spec-kit/supportdesk/internal/domain"
)

// RegisterRequest payload.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse carries the bearer token and anti-forgery nonce.
type SessionResponse struct {
	Token     string            `json:"token"`
	Nonce     string            `json:"nonce"`
	ExpiresAt time.Time         `json:"expires_at"`
	Principal PrincipalResponse `json:"principal"`
}

// PrincipalResponse is the public form of a principal.
type PrincipalResponse struct {
	ID          int64         `json:"id"`
	DisplayName string        `json:"display_name"`
	Email       string        `json:"email"`
	Roles       []domain.Role `json:"roles"`
}

// AddTeamMemberRequest payload.
type AddTeamMemberRequest struct {
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

// AssignRoleRequest payload.
type AssignRoleRequest struct {
	Role domain.Role `json:"role"`
}

// TeamMemberStatsResponse pairs a member with cached counts.
type TeamMemberStatsResponse struct {
	PrincipalResponse
	domain.TicketCounts
}

// NewPrincipalResponse maps a principal.
func NewPrincipalResponse(p *domain.Principal) PrincipalResponse {
	roles := p.Roles
	if roles == nil {
		roles = []domain.Role{}
	}
	return PrincipalResponse{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		Email:       p.Email,
		Roles:       roles,
	}
}
