package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ApplicationStatus is the lifecycle state of a provider application.
type ApplicationStatus string

const (
	ApplicationStatusSubmitted ApplicationStatus = "submitted"
	ApplicationStatusInReview  ApplicationStatus = "in_review"
	ApplicationStatusApproved  ApplicationStatus = "approved"
	ApplicationStatusRejected  ApplicationStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case ApplicationStatusSubmitted, ApplicationStatusInReview, ApplicationStatusApproved, ApplicationStatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s ApplicationStatus) Terminal() bool {
	return s == ApplicationStatusApproved || s == ApplicationStatusRejected
}

// ApprovalTier classifies an application by automated score.
type ApprovalTier string

const (
	ApprovalTierStandard ApprovalTier = "standard"
	ApprovalTierVerified ApprovalTier = "verified"
	ApprovalTierPremium  ApprovalTier = "premium"
)

// Valid reports whether t is a known tier.
func (t ApprovalTier) Valid() bool {
	return t == ApprovalTierStandard || t == ApprovalTierVerified || t == ApprovalTierPremium
}

// Experience bands accepted for years_experience.
const (
	ExperienceFivePlus    = "5+"
	ExperienceThreeToFive = "3-5"
	ExperienceOneToThree  = "1-3"
	ExperienceUnderOne    = "0-1"
)

// CaseStudy is a single self-reported client engagement.
type CaseStudy struct {
	ClientName      string `json:"client_name,omitempty"`
	Industry        string `json:"industry,omitempty"`
	Challenge       string `json:"challenge,omitempty"`
	Solution        string `json:"solution,omitempty"`
	ResultsAchieved string `json:"results_achieved,omitempty"`
	Metrics         string `json:"metrics,omitempty"`
}

// ApplicationPayload holds the self-reported fields of a provider application.
// Every field is optional at decode time; scoring treats missing values as zero contribution.
type ApplicationPayload struct {
	FullName               string      `json:"full_name,omitempty"`
	Email                  string      `json:"email,omitempty"`
	Phone                  string      `json:"phone,omitempty"`
	Location               string      `json:"location,omitempty"`
	Availability           string      `json:"availability,omitempty"`
	BusinessName           string      `json:"business_name,omitempty"`
	WebsiteURL             string      `json:"website_url,omitempty"`
	Bio                    string      `json:"bio,omitempty"`
	YearsExperience        string      `json:"years_experience,omitempty"`
	ExpertiseAreas         []string    `json:"expertise_areas,omitempty"`
	Platforms              []string    `json:"platforms,omitempty"`
	CaseStudies            []CaseStudy `json:"case_studies,omitempty"`
	PortfolioURL           string      `json:"portfolio_url,omitempty"`
	LinkedInURL            string      `json:"linkedin_url,omitempty"`
	PerformanceGuarantee   string      `json:"performance_guarantee,omitempty"`
	HourlyRate             string      `json:"hourly_rate,omitempty"`
	AgreeToTerms           bool        `json:"agree_to_terms,omitempty"`
	AgreeToBackgroundCheck bool        `json:"agree_to_background_check,omitempty"`
}

// Value implements driver.Valuer for JSONB storage.
func (p ApplicationPayload) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements sql.Scanner for JSONB storage.
func (p *ApplicationPayload) Scan(src interface{}) error {
	return scanJSON(src, p)
}

// ScoreBreakdown records the points each factor contributed. Total is the uncapped sum.
type ScoreBreakdown struct {
	Experience           int `json:"experience"`
	ExpertiseAreas       int `json:"expertise_areas"`
	CaseStudies          int `json:"case_studies"`
	Portfolio            int `json:"portfolio"`
	LinkedIn             int `json:"linkedin"`
	PerformanceGuarantee int `json:"performance_guarantee"`
}

// Total returns the raw additive sum before capping.
func (b ScoreBreakdown) Total() int {
	return b.Experience + b.ExpertiseAreas + b.CaseStudies + b.Portfolio + b.LinkedIn + b.PerformanceGuarantee
}

// Value implements driver.Valuer.
func (b ScoreBreakdown) Value() (driver.Value, error) {
	return json.Marshal(b)
}

// Scan implements sql.Scanner.
func (b *ScoreBreakdown) Scan(src interface{}) error {
	return scanJSON(src, b)
}

// ScoreResult is the output of the scoring engine.
type ScoreResult struct {
	Score        int            `json:"score"`
	Tier         ApprovalTier   `json:"tier"`
	AutoApproved bool           `json:"auto_approved"`
	Breakdown    ScoreBreakdown `json:"breakdown"`
}

// ValidationResult is the output of the validation gate.
type ValidationResult struct {
	IsValid bool     `json:"is_valid"`
	Issues  []string `json:"issues"`
}

// Application is a persisted provider application.
type Application struct {
	ID                       string             `db:"id" json:"id"`
	ApplicantID              string             `db:"applicant_id" json:"applicant_id"`
	Payload                  ApplicationPayload `db:"payload" json:"payload"`
	Status                   ApplicationStatus  `db:"status" json:"status"`
	AutomatedScore           *int               `db:"automated_score" json:"automated_score,omitempty"`
	ApprovalTier             *ApprovalTier      `db:"approval_tier" json:"approval_tier,omitempty"`
	AutoApproved             bool               `db:"auto_approved" json:"auto_approved"`
	ScoreBreakdown           *ScoreBreakdown    `db:"score_breakdown" json:"score_breakdown,omitempty"`
	ReviewerNotes            *string            `db:"reviewer_notes" json:"reviewer_notes,omitempty"`
	TechnicalAssessmentScore *int               `db:"technical_assessment_score" json:"technical_assessment_score,omitempty"`
	ReviewedBy               *string            `db:"reviewed_by" json:"reviewed_by,omitempty"`
	NotificationSent         bool               `db:"notification_sent" json:"notification_sent"`
	NotificationSentAt       *time.Time         `db:"notification_sent_at" json:"notification_sent_at,omitempty"`
	SubmittedAt              time.Time          `db:"submitted_at" json:"submitted_at"`
	ReviewedAt               *time.Time         `db:"reviewed_at" json:"reviewed_at,omitempty"`
	UpdatedAt                time.Time          `db:"updated_at" json:"updated_at"`
}

// ApplicationFilter narrows application listings.
type ApplicationFilter struct {
	Status       []ApplicationStatus
	Tier         *ApprovalTier
	ApplicantID  string
	AutoApproved *bool
	Search       string
	Page         int
	PageSize     int
}

// ActiveApplicationStatuses block a new submission from the same applicant.
var ActiveApplicationStatuses = []ApplicationStatus{
	ApplicationStatusSubmitted,
	ApplicationStatusInReview,
	ApplicationStatusApproved,
}

func scanJSON(src interface{}, dest interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dest)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported json source %T", src)
	}
}
