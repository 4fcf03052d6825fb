package service

import (
	"strings"

	"github.com/noah-isme/provider-admission-api/internal/models"
)

// Rubric points.
const (
	maxScore = 100

	experiencePointsFivePlus    = 50
	experiencePointsThreeToFive = 40
	experiencePointsOneToThree  = 30
	experiencePointsBaseline    = 20

	pointsPerExpertiseArea      = 5
	pointsPerCaseStudy          = 15
	portfolioBonus              = 10
	linkedInBonus               = 5
	performanceGuaranteeBonus   = 10
	performanceGuaranteeAccepts = "yes"
)

// ScoringRules holds the score thresholds. Tier and auto-approval thresholds are independent.
type ScoringRules struct {
	PremiumMin     int
	VerifiedMin    int
	AutoApproveMin int
}

// DefaultScoringRules returns premium >= 80, verified >= 60, auto-approve >= 85.
func DefaultScoringRules() ScoringRules {
	return ScoringRules{PremiumMin: 80, VerifiedMin: 60, AutoApproveMin: 85}
}

// ScoringEngine converts an application payload into a score, tier and auto-approval flag.
// It holds no mutable state and is safe for concurrent use.
type ScoringEngine struct {
	rules ScoringRules
}

// NewScoringEngine constructs an engine. Non-positive thresholds fall back to the defaults.
func NewScoringEngine(rules ScoringRules) *ScoringEngine {
	defaults := DefaultScoringRules()
	if rules.PremiumMin <= 0 {
		rules.PremiumMin = defaults.PremiumMin
	}
	if rules.VerifiedMin <= 0 {
		rules.VerifiedMin = defaults.VerifiedMin
	}
	if rules.AutoApproveMin <= 0 {
		rules.AutoApproveMin = defaults.AutoApproveMin
	}
	return &ScoringEngine{rules: rules}
}

// Rules returns the active thresholds.
func (e *ScoringEngine) Rules() ScoringRules {
	return e.rules
}

// Score applies the additive rubric and caps the result at 100. The breakdown keeps uncapped points.
func (e *ScoringEngine) Score(payload models.ApplicationPayload) models.ScoreResult {
	breakdown := models.ScoreBreakdown{
		Experience:     experiencePoints(payload.YearsExperience),
		ExpertiseAreas: len(payload.ExpertiseAreas) * pointsPerExpertiseArea,
		CaseStudies:    len(payload.CaseStudies) * pointsPerCaseStudy,
	}
	if strings.TrimSpace(payload.PortfolioURL) != "" {
		breakdown.Portfolio = portfolioBonus
	}
	if strings.TrimSpace(payload.LinkedInURL) != "" {
		breakdown.LinkedIn = linkedInBonus
	}
	if payload.PerformanceGuarantee == performanceGuaranteeAccepts {
		breakdown.PerformanceGuarantee = performanceGuaranteeBonus
	}

	score := breakdown.Total()
	if score > maxScore {
		score = maxScore
	}

	return models.ScoreResult{
		Score:        score,
		Tier:         e.TierFor(score),
		AutoApproved: e.AutoApproves(score),
		Breakdown:    breakdown,
	}
}

// TierFor derives the tier from a final score.
func (e *ScoringEngine) TierFor(score int) models.ApprovalTier {
	switch {
	case score >= e.rules.PremiumMin:
		return models.ApprovalTierPremium
	case score >= e.rules.VerifiedMin:
		return models.ApprovalTierVerified
	default:
		return models.ApprovalTierStandard
	}
}

// AutoApproves reports whether score clears the auto-approval threshold.
func (e *ScoringEngine) AutoApproves(score int) bool {
	return score >= e.rules.AutoApproveMin
}

func experiencePoints(band string) int {
	switch strings.TrimSpace(band) {
	case models.ExperienceFivePlus:
		return experiencePointsFivePlus
	case models.ExperienceThreeToFive:
		return experiencePointsThreeToFive
	case models.ExperienceOneToThree:
		return experiencePointsOneToThree
	default:
		return experiencePointsBaseline
	}
}

func countNonBlank(values []string) int {
	n := 0
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			n++
		}
	}
	return n
}
