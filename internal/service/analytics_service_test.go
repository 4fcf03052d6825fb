package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/provider-admission-api/internal/models"
	appErrors "github.com/noah-isme/provider-admission-api/pkg/errors"
)

type mockAggregateRepo struct {
	rows  []models.ApplicationAggregateRow
	err   error
	calls int
}

func (m *mockAggregateRepo) Aggregate(context.Context) ([]models.ApplicationAggregateRow, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.rows, nil
}

type stubCacheRepo struct {
	mu      sync.Mutex
	store   map[string][]byte
	deleted []string
}

func (s *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (s *stubCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		s.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = payload
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range s.store {
		if strings.HasPrefix(key, prefix) {
			delete(s.store, key)
		}
	}
	return nil
}

func tierPtr(t models.ApprovalTier) *models.ApprovalTier { return &t }

func TestSummarizeApplicationsEmpty(t *testing.T) {
	summary := summarizeApplications(nil)
	assert.Equal(t, 0, summary.Total)
	assert.Equal(t, 0, summary.AutoApproved)
	assert.Equal(t, float64(0), summary.AverageScore)
	require.NotNil(t, summary.StatusBreakdown)
	require.NotNil(t, summary.TierBreakdown)
	assert.Empty(t, summary.StatusBreakdown)
	assert.Empty(t, summary.TierBreakdown)
}

func TestSummarizeApplicationsFold(t *testing.T) {
	rows := []models.ApplicationAggregateRow{
		{Status: models.ApplicationStatusSubmitted, Tier: tierPtr(models.ApprovalTierPremium), Count: 2, AutoApproved: 1, ScoredCount: 2, ScoreSum: 180},
		{Status: models.ApplicationStatusApproved, Tier: tierPtr(models.ApprovalTierPremium), Count: 1, AutoApproved: 1, ScoredCount: 1, ScoreSum: 95},
		{Status: models.ApplicationStatusRejected, Tier: tierPtr(models.ApprovalTierStandard), Count: 1, ScoredCount: 1, ScoreSum: 25},
		{Status: models.ApplicationStatusInReview, Tier: nil, Count: 1},
	}

	summary := summarizeApplications(rows)
	assert.Equal(t, 5, summary.Total)
	assert.Equal(t, 2, summary.AutoApproved)
	assert.InDelta(t, 75.0, summary.AverageScore, 0.001)
	assert.Equal(t, map[models.ApplicationStatus]int{
		models.ApplicationStatusSubmitted: 2,
		models.ApplicationStatusApproved:  1,
		models.ApplicationStatusRejected:  1,
		models.ApplicationStatusInReview:  1,
	}, summary.StatusBreakdown)
	assert.Equal(t, map[models.ApprovalTier]int{
		models.ApprovalTierPremium:  3,
		models.ApprovalTierStandard: 1,
	}, summary.TierBreakdown)
}

func TestAnalyticsServiceAggregateCaching(t *testing.T) {
	repo := &mockAggregateRepo{rows: []models.ApplicationAggregateRow{
		{Status: models.ApplicationStatusSubmitted, Tier: tierPtr(models.ApprovalTierVerified), Count: 1, ScoredCount: 1, ScoreSum: 70},
	}}
	cacheRepo := &stubCacheRepo{}
	cacheSvc := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	svc := NewAnalyticsService(repo, cacheSvc, nil, time.Minute, zap.NewNop())
	ctx := context.Background()

	first, hit, err := svc.Aggregate(ctx)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, repo.calls)
	assert.Equal(t, 1, first.Total)

	second, hit, err := svc.Aggregate(ctx)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, repo.calls)
	assert.Equal(t, first, second)

	require.NoError(t, cacheSvc.InvalidateApplicationAnalytics(ctx))
	_, hit, err = svc.Aggregate(ctx)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, repo.calls)
}

func TestAnalyticsServiceAggregateErrorPassthrough(t *testing.T) {
	repo := &mockAggregateRepo{err: assert.AnError}
	svc := NewAnalyticsService(repo, NewCacheService(nil, nil, time.Minute, nil, false), nil, 0, nil)

	_, _, err := svc.Aggregate(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestAnalyticsServiceEmptyWithoutCache(t *testing.T) {
	svc := NewAnalyticsService(&mockAggregateRepo{}, nil, nil, 0, nil)
	summary, hit, err := svc.Aggregate(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 0, summary.Total)
	assert.NotNil(t, summary.StatusBreakdown)
	assert.Equal(t, models.AnalyticsSystemMetrics{}, svc.SystemMetrics())
}
