package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/provider-admission-api/internal/models"
)

// ApplicationAggregator exposes the grouped rollup rows for applications.
type ApplicationAggregator interface {
	Aggregate(ctx context.Context) ([]models.ApplicationAggregateRow, error)
}

// AnalyticsService provides read-optimised access to application rollups with cache integration.
type AnalyticsService struct {
	repo     ApplicationAggregator
	cache    *CacheService
	metrics  *MetricsService
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewAnalyticsService constructs an analytics service.
func NewAnalyticsService(repo ApplicationAggregator, cache *CacheService, metrics *MetricsService, cacheTTL time.Duration, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{repo: repo, cache: cache, metrics: metrics, cacheTTL: cacheTTL, logger: logger}
}

// Aggregate returns the application summary. The boolean indicates whether data originated from cache.
func (s *AnalyticsService) Aggregate(ctx context.Context) (models.ApplicationSummary, bool, error) {
	var cached models.ApplicationSummary
	if hit, err := s.cache.Get(ctx, applicationSummaryCacheKey, &cached); err != nil {
		s.logger.Warn("application summary cache unavailable", zap.Error(err))
	} else if hit {
		return normalizeSummary(cached), true, nil
	}

	start := time.Now()
	rows, err := s.repo.Aggregate(ctx)
	if err != nil {
		return models.ApplicationSummary{}, false, fmt.Errorf("aggregate applications: %w", err)
	}
	s.metrics.ObserveDBQuery("applications_aggregate", time.Since(start))

	summary := summarizeApplications(rows)
	if err := s.cache.Set(ctx, applicationSummaryCacheKey, summary, s.cacheTTL); err != nil {
		s.logger.Warn("cache application summary", zap.Error(err))
	}
	return summary, false, nil
}

// SystemMetrics returns system instrumentation snapshot.
func (s *AnalyticsService) SystemMetrics() models.AnalyticsSystemMetrics {
	return s.metrics.Snapshot()
}

// summarizeApplications folds grouped rows into a summary. Rows without a tier count toward the
// total and status breakdown only; the average covers scored rows only.
func summarizeApplications(rows []models.ApplicationAggregateRow) models.ApplicationSummary {
	summary := models.ApplicationSummary{
		StatusBreakdown: make(map[models.ApplicationStatus]int),
		TierBreakdown:   make(map[models.ApprovalTier]int),
	}
	var scored int
	var scoreSum int64
	for _, row := range rows {
		if row.Count <= 0 {
			continue
		}
		summary.Total += row.Count
		summary.AutoApproved += row.AutoApproved
		summary.StatusBreakdown[row.Status] += row.Count
		if row.Tier != nil && *row.Tier != "" {
			summary.TierBreakdown[*row.Tier] += row.Count
		}
		scored += row.ScoredCount
		scoreSum += row.ScoreSum
	}
	if scored > 0 {
		summary.AverageScore = float64(scoreSum) / float64(scored)
	}
	return summary
}

func normalizeSummary(summary models.ApplicationSummary) models.ApplicationSummary {
	if summary.StatusBreakdown == nil {
		summary.StatusBreakdown = make(map[models.ApplicationStatus]int)
	}
	if summary.TierBreakdown == nil {
		summary.TierBreakdown = make(map[models.ApprovalTier]int)
	}
	return summary
}
