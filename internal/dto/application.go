package dto

import "github.com/noah-isme/provider-admission-api/internal/models"

// TransitionApplicationRequest moves an application to a new status.
// ExpectedStatus is the status the reviewer saw; the move fails if it changed meanwhile.
type TransitionApplicationRequest struct {
	ExpectedStatus           models.ApplicationStatus `json:"expected_status" binding:"required"`
	Status                   models.ApplicationStatus `json:"status" binding:"required"`
	ReviewerNotes            string                   `json:"reviewer_notes"`
	TechnicalAssessmentScore *int                     `json:"technical_assessment_score" binding:"omitempty,min=0,max=100"`
}

// ApplicationQuery captures list filters from the query string.
type ApplicationQuery struct {
	Status       []models.ApplicationStatus
	Tier         string
	AutoApproved *bool
	Search       string
	Page         int
	PageSize     int
}

// ApplicationEnvelope is returned by submit, transition and resend operations.
type ApplicationEnvelope struct {
	Application      *models.Application `json:"application"`
	NotificationSent bool                `json:"notification_sent"`
	Warnings         []string            `json:"warnings,omitempty"`
}
