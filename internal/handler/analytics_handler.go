package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/provider-admission-api/internal/middleware"
	"github.com/noah-isme/provider-admission-api/internal/models"
	appErrors "github.com/noah-isme/provider-admission-api/pkg/errors"
	"github.com/noah-isme/provider-admission-api/pkg/response"
)

type analyticsService interface {
	Aggregate(ctx context.Context) (models.ApplicationSummary, bool, error)
	SystemMetrics() models.AnalyticsSystemMetrics
}

// AnalyticsHandler exposes dashboard-ready analytics endpoints.
type AnalyticsHandler struct {
	analytics analyticsService
}

// NewAnalyticsHandler constructs the analytics handler.
func NewAnalyticsHandler(analytics analyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Applications godoc
// @Summary Aggregate application analytics
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/applications/analytics [get]
func (h *AnalyticsHandler) Applications(c *gin.Context) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	start := time.Now()
	summary, cacheHit, err := h.analytics.Aggregate(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, summary, nil, processingMeta(c, start))
}

// System returns instrumentation metrics snapshots.
func (h *AnalyticsHandler) System(c *gin.Context) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	start := time.Now()
	metrics := h.analytics.SystemMetrics()
	middleware.SetCacheHit(c, false)
	response.JSON(c, http.StatusOK, metrics, nil, processingMeta(c, start))
}

func processingMeta(c *gin.Context, start time.Time) map[string]interface{} {
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = make(map[string]interface{})
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	return meta
}
