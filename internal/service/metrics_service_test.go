package service

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/provider-admission-api/internal/models"
)

func TestMetricsServiceSnapshot(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/applications/:id", 200, 20*time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.RecordTransition(models.ApplicationStatusSubmitted, models.ApplicationStatusApproved, "applied")
	m.RecordTransition(models.ApplicationStatusSubmitted, models.ApplicationStatusRejected, "conflict")
	m.RecordNotification(models.ApplicationStatusApproved, true)
	m.RecordNotification(models.ApplicationStatusRejected, false)

	snap := m.Snapshot()
	assert.Equal(t, uint64(1), snap.RequestsTotal)
	assert.InDelta(t, 0.5, snap.CacheHitRatio, 0.0001)
	assert.Equal(t, uint64(1), snap.Transitions["submitted->approved:applied"])
	assert.Equal(t, uint64(1), snap.Transitions["submitted->rejected:conflict"])
	assert.Equal(t, models.NotificationDeliveryCounters{Sent: 1, Failed: 1}, snap.Notifications)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.transitions.WithLabelValues("submitted", "approved", "applied")))
}

func TestMetricsServiceHandler(t *testing.T) {
	m := NewMetricsService()
	m.RecordSubmission("accepted", &models.ScoreResult{Score: 90, Tier: models.ApprovalTierPremium})

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "admission_application_submissions_total"))

	var nilMetrics *MetricsService
	nilMetrics.RecordNotification(models.ApplicationStatusApproved, true)
	assert.Equal(t, models.AnalyticsSystemMetrics{}, nilMetrics.Snapshot())
}
