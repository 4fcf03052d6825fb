package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/provider-admission-api/api/swagger"
	"github.com/noah-isme/provider-admission-api/internal/handler"
	"github.com/noah-isme/provider-admission-api/internal/middleware"
	"github.com/noah-isme/provider-admission-api/internal/models"
	"github.com/noah-isme/provider-admission-api/pkg/config"
	"github.com/noah-isme/provider-admission-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/provider-admission-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/provider-admission-api/pkg/middleware/requestid"
)

func newRouter(cfg *config.Config, app *application, logr *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(app.metrics))
	r.Use(middleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(app.metrics, app.db)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	applicationHandler := handler.NewApplicationHandler(app.applications)
	analyticsHandler := handler.NewAnalyticsHandler(app.analytics)
	eventsHandler := handler.NewEventsHandler(app.hub, cfg.CORS.AllowedOrigins, logr.Named("events"))

	api := r.Group(cfg.APIPrefix)

	public := api.Group("/applications")
	public.POST("/validate", applicationHandler.Validate)
	public.POST("/score", applicationHandler.Score)

	secured := api.Group("/applications", middleware.JWT(app.auth))
	submit := []gin.HandlerFunc{middleware.RequireRoles(models.RoleProvider, models.RoleAdmin)}
	if app.rateLimiter != nil {
		submit = append(submit, app.rateLimiter.Handler())
	}
	submit = append(submit, applicationHandler.Submit)
	secured.POST("", submit...)
	secured.GET("/me", applicationHandler.Mine)
	secured.GET("/:id", applicationHandler.Get)

	admin := api.Group("/admin", middleware.JWT(app.auth), middleware.RequireRoles(models.RoleAdmin))
	admin.GET("/applications", applicationHandler.List)
	admin.GET("/applications/analytics", analyticsHandler.Applications)
	admin.GET("/applications/events", eventsHandler.Stream)
	admin.POST("/applications/:id/transition", applicationHandler.Transition)
	admin.POST("/applications/:id/notify", applicationHandler.Notify)
	admin.GET("/system/metrics", analyticsHandler.System)

	if app.exports != nil {
		exportHandler := handler.NewExportHandler(app.exports)
		admin.GET("/applications/export",
			middleware.Audit(app.auditRepo, models.AuditActionApplicationExport, models.AuditResourceApplication, logr.Named("audit")),
			exportHandler.Applications)
	}

	return r
}
