package models

import "time"

// ApplicationSummary is the operator rollup over all applications.
type ApplicationSummary struct {
	Total           int                       `json:"total"`
	AutoApproved    int                       `json:"auto_approved"`
	AverageScore    float64                   `json:"average_score"`
	StatusBreakdown map[ApplicationStatus]int `json:"status_breakdown"`
	TierBreakdown   map[ApprovalTier]int      `json:"tier_breakdown"`
}

// ApplicationAggregateRow is one grouped row from the aggregate query.
// Status and tier combinations are grouped; score columns cover scored rows only.
type ApplicationAggregateRow struct {
	Status       ApplicationStatus `db:"status"`
	Tier         *ApprovalTier     `db:"approval_tier"`
	Count        int               `db:"total"`
	AutoApproved int               `db:"auto_approved"`
	ScoredCount  int               `db:"scored"`
	ScoreSum     int64             `db:"score_sum"`
}

// AnalyticsSystemMetrics represents system level analytics captured from instrumentation.
type AnalyticsSystemMetrics struct {
	CacheHitRatio            float64                      `json:"cache_hit_ratio"`
	CacheHits                uint64                       `json:"cache_hits"`
	CacheMisses              uint64                       `json:"cache_misses"`
	RequestsTotal            uint64                       `json:"requests_total"`
	AverageRequestDurationMs float64                      `json:"average_request_duration_ms"`
	DBQueryCount             uint64                       `json:"db_query_count"`
	AverageDBQueryDurationMs float64                      `json:"average_db_query_duration_ms"`
	Transitions              map[string]uint64            `json:"transitions"`
	Notifications            NotificationDeliveryCounters `json:"notifications"`
	Goroutines               int                          `json:"goroutines"`
	GeneratedAt              time.Time                    `json:"generated_at"`
}

// NotificationDeliveryCounters tracks notification outcomes since process start.
type NotificationDeliveryCounters struct {
	Sent   uint64 `json:"sent"`
	Failed uint64 `json:"failed"`
}
