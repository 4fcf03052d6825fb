package service

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/provider-admission-api/internal/models"
)

// Issue messages reported by the validation gate.
const (
	IssueFullNameRequired        = "Full name is required"
	IssueEmailRequired           = "Email is required"
	IssueExperienceRequired      = "Years of experience is required"
	IssueExpertiseAreasRequired  = "At least one expertise area is required"
	IssueCaseStudiesRequired     = "At least one case study is required"
	IssuePortfolioURLInvalid     = "Portfolio URL must be a valid URL"
	IssueLinkedInURLInvalid      = "LinkedIn URL must be a valid URL"
	issueCaseStudyResultsMissing = "Case study %d: results achieved is required"
)

// ApplicationValidator checks payload completeness before scoring. It never mutates state.
type ApplicationValidator struct {
	validate *validator.Validate
}

// NewApplicationValidator constructs a validator. A nil validate instance gets a fresh one.
func NewApplicationValidator(validate *validator.Validate) *ApplicationValidator {
	if validate == nil {
		validate = validator.New()
	}
	return &ApplicationValidator{validate: validate}
}

// Validate returns every issue found; the payload passes when the list is empty.
func (v *ApplicationValidator) Validate(payload models.ApplicationPayload) models.ValidationResult {
	issues := make([]string, 0)

	if strings.TrimSpace(payload.FullName) == "" {
		issues = append(issues, IssueFullNameRequired)
	}
	if strings.TrimSpace(payload.Email) == "" {
		issues = append(issues, IssueEmailRequired)
	}
	if strings.TrimSpace(payload.YearsExperience) == "" {
		issues = append(issues, IssueExperienceRequired)
	}
	if countNonBlank(payload.ExpertiseAreas) == 0 {
		issues = append(issues, IssueExpertiseAreasRequired)
	}
	if len(payload.CaseStudies) == 0 {
		issues = append(issues, IssueCaseStudiesRequired)
	}
	for i, study := range payload.CaseStudies {
		if strings.TrimSpace(study.ResultsAchieved) == "" {
			issues = append(issues, fmt.Sprintf(issueCaseStudyResultsMissing, i+1))
		}
	}
	if !v.optionalURL(payload.PortfolioURL) {
		issues = append(issues, IssuePortfolioURLInvalid)
	}
	if !v.optionalURL(payload.LinkedInURL) {
		issues = append(issues, IssueLinkedInURLInvalid)
	}

	return models.ValidationResult{IsValid: len(issues) == 0, Issues: issues}
}

func (v *ApplicationValidator) optionalURL(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return true
	}
	return v.validate.Var(trimmed, "url") == nil
}
