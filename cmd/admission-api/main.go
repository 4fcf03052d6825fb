package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/provider-admission-api/internal/middleware"
	"github.com/noah-isme/provider-admission-api/internal/repository"
	"github.com/noah-isme/provider-admission-api/internal/service"
	"github.com/noah-isme/provider-admission-api/pkg/cache"
	"github.com/noah-isme/provider-admission-api/pkg/config"
	"github.com/noah-isme/provider-admission-api/pkg/database"
	"github.com/noah-isme/provider-admission-api/pkg/events"
	"github.com/noah-isme/provider-admission-api/pkg/jobs"
	"github.com/noah-isme/provider-admission-api/pkg/logger"
	"github.com/noah-isme/provider-admission-api/pkg/mailer"
)

// @title Provider Admission API
// @version 1.0.0
// @description Provider application intake, scoring and review
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	redisClient := connectRedis(ctx, cfg, logr)

	app := buildApp(cfg, db, redisClient, logr)
	defer app.cacheRepo.Close() //nolint:errcheck

	app.notificationQueue.Start(ctx)
	defer app.notificationQueue.Stop()

	if n := app.notifications.RecoverPending(ctx); n > 0 {
		logr.Sugar().Infow("requeued pending notifications", "count", n)
	}
	app.notifications.StartRetryLoop(ctx)
	if app.rateLimiter != nil {
		app.rateLimiter.StartCleanup(ctx, time.Minute, 10*time.Minute)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(cfg, app, logr),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// connectRedis returns nil when the analytics cache is disabled or redis is unreachable; the cache then degrades to misses.
func connectRedis(ctx context.Context, cfg *config.Config, logr *zap.Logger) *redis.Client {
	if !cfg.Analytics.Enabled {
		return nil
	}
	client, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, analytics cache disabled", zap.Error(err))
		return nil
	}
	return client
}

type application struct {
	db                *sqlx.DB
	cacheRepo         *repository.CacheRepository
	auditRepo         *repository.AuditRepository
	metrics           *service.MetricsService
	hub               *events.Hub
	auth              *service.AuthService
	applications      *service.ApplicationService
	analytics         *service.AnalyticsService
	exports           *service.ExportService
	notifications     *service.NotificationService
	notificationQueue *jobs.Queue
	rateLimiter       *middleware.RateLimiter
}

func buildApp(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, logr *zap.Logger) *application {
	metrics := service.NewMetricsService()
	hub := events.NewHub(64, logr.Named("events"))

	applicationRepo := repository.NewApplicationRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, "admission", logr.Named("cache"))

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Analytics.CacheTTL, logr.Named("cache"), cfg.Analytics.Enabled && redisClient != nil)

	var sender mailer.Sender = mailer.NewLogSender(logr.Named("mailer"))
	if cfg.Notifications.Enabled {
		smtp, err := mailer.NewSMTPSender(cfg.Notifications)
		if err != nil {
			logr.Warn("smtp disabled", zap.Error(err))
		} else {
			sender = smtp
		}
	}

	var worker *service.NotificationWorker
	queue := jobs.NewQueue("notifications", func(ctx context.Context, job jobs.Job) error {
		return worker.Handle(ctx, job)
	}, jobs.QueueConfig{
		Workers:    cfg.Notifications.WorkerConcurrency,
		MaxRetries: cfg.Notifications.WorkerRetries,
		RetryDelay: 5 * time.Second,
		Logger:     logr,
		OnExhausted: func(job jobs.Job, err error) {
			logr.Warn("notification job dropped; retry loop will pick it up",
				zap.String("application_id", job.ID), zap.Error(err))
		},
	})

	notifications := service.NewNotificationService(
		service.NewMailNotifier(sender, logr.Named("notifier")),
		applicationRepo,
		queue,
		hub,
		metrics,
		logr.Named("notifications"),
		service.NotificationServiceConfig{
			RetryInterval: cfg.Notifications.RetryInterval,
			RetryGrace:    cfg.Notifications.RetryGrace,
		},
	)
	worker = service.NewNotificationWorker(notifications, applicationRepo, cfg.Notifications.WorkerRetries, logr.Named("notifications"))

	scoring := service.NewScoringEngine(service.ScoringRules{
		PremiumMin:     cfg.Scoring.PremiumMin,
		VerifiedMin:    cfg.Scoring.VerifiedMin,
		AutoApproveMin: cfg.Scoring.AutoApproveMin,
	})

	applications := service.NewApplicationService(
		applicationRepo,
		scoring,
		service.NewApplicationValidator(validator.New()),
		notifications,
		auditRepo,
		hub,
		cacheSvc,
		metrics,
		logr.Named("applications"),
		service.ApplicationServiceConfig{
			BlockInvalid: cfg.Admission.BlockInvalid,
			AutoApprove:  cfg.Admission.AutoApprove,
		},
	)

	app := &application{
		db:                db,
		cacheRepo:         cacheRepo,
		auditRepo:         auditRepo,
		metrics:           metrics,
		hub:               hub,
		auth:              service.NewAuthService(logr.Named("auth"), service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer, Audience: cfg.JWT.Audience, Leeway: 30 * time.Second}),
		applications:      applications,
		analytics:         service.NewAnalyticsService(applicationRepo, cacheSvc, metrics, cfg.Analytics.CacheTTL, logr.Named("analytics")),
		notifications:     notifications,
		notificationQueue: queue,
	}
	if cfg.Exports.Enabled {
		app.exports = service.NewExportService(applicationRepo, service.ExportConfig{MaxRows: cfg.Exports.MaxRows}, logr.Named("exports"), nil, nil)
	}
	if cfg.RateLimit.Enabled {
		app.rateLimiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst, logr.Named("ratelimit"))
	}
	return app
}
