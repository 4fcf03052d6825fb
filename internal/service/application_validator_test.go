package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/provider-admission-api/internal/models"
)

func TestApplicationValidatorEmptyPayload(t *testing.T) {
	result := NewApplicationValidator(nil).Validate(models.ApplicationPayload{})
	assert.False(t, result.IsValid)
	assert.GreaterOrEqual(t, len(result.Issues), 5)
	assert.Contains(t, result.Issues, IssueFullNameRequired)
	assert.Contains(t, result.Issues, IssueEmailRequired)
	assert.Contains(t, result.Issues, IssueExperienceRequired)
	assert.Contains(t, result.Issues, IssueExpertiseAreasRequired)
	assert.Contains(t, result.Issues, IssueCaseStudiesRequired)
}

func TestApplicationValidatorValidPayload(t *testing.T) {
	result := NewApplicationValidator(nil).Validate(fullPayload())
	assert.True(t, result.IsValid)
	assert.Empty(t, result.Issues)
	assert.NotNil(t, result.Issues)
}

func TestApplicationValidatorNamesCaseStudyIndex(t *testing.T) {
	payload := fullPayload()
	payload.CaseStudies = []models.CaseStudy{
		{ResultsAchieved: "doubled revenue"},
		{ResultsAchieved: "40% open rate"},
		{ResultsAchieved: "   "},
	}
	result := NewApplicationValidator(nil).Validate(payload)
	assert.False(t, result.IsValid)
	assert.Equal(t, []string{"Case study 3: results achieved is required"}, result.Issues)
}

func TestApplicationValidatorURLs(t *testing.T) {
	v := NewApplicationValidator(nil)

	payload := fullPayload()
	payload.PortfolioURL = "not a url"
	payload.LinkedInURL = "linkedin.com/in/jane"
	result := v.Validate(payload)
	assert.Contains(t, result.Issues, IssuePortfolioURLInvalid)
	assert.Contains(t, result.Issues, IssueLinkedInURLInvalid)

	payload.PortfolioURL = ""
	payload.LinkedInURL = "  https://www.linkedin.com/in/jane  "
	result = v.Validate(payload)
	assert.True(t, result.IsValid)
}

func TestApplicationValidatorBlankEntries(t *testing.T) {
	payload := fullPayload()
	payload.FullName = "  "
	payload.ExpertiseAreas = []string{" "}
	result := NewApplicationValidator(nil).Validate(payload)
	assert.ElementsMatch(t, []string{IssueFullNameRequired, IssueExpertiseAreasRequired}, result.Issues)
}
