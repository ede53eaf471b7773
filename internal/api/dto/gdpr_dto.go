package dto

import "github.com/spec-kit/supportdesk/internal/domain"

// RetentionResponse is the body of GET /gdpr/data-retention.
type RetentionResponse struct {
	domain.RetentionSettings
	EligibleNow          int `json:"eligible_now"`
	EligibleWithinNotice int `json:"eligible_within_notice"`
}

// CleanupResponse is the body of POST /gdpr/cleanup.
type CleanupResponse struct {
	Success bool `json:"success"`
	domain.SweepResult
}
