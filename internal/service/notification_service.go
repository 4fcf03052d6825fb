package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/provider-admission-api/internal/models"
	"github.com/noah-isme/provider-admission-api/pkg/events"
	"github.com/noah-isme/provider-admission-api/pkg/jobs"
	"github.com/noah-isme/provider-admission-api/pkg/mailer"
)

// NotificationJobType tags queue jobs that redeliver a status notification.
const NotificationJobType = "application_notification"

// Notifier delivers the status-change message for one application.
type Notifier interface {
	Send(ctx context.Context, req models.NotificationRequest) (bool, error)
}

// MailNotifier renders the status template and hands it to a mail sender.
type MailNotifier struct {
	sender mailer.Sender
	logger *zap.Logger
}

// NewMailNotifier constructs a MailNotifier.
func NewMailNotifier(sender mailer.Sender, logger *zap.Logger) *MailNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MailNotifier{sender: sender, logger: logger}
}

// Send implements Notifier.
func (n *MailNotifier) Send(ctx context.Context, req models.NotificationRequest) (bool, error) {
	if strings.TrimSpace(req.RecipientEmail) == "" {
		return false, fmt.Errorf("application %s has no recipient email", req.ApplicationID)
	}
	if n.sender == nil {
		return false, errors.New("mail sender not configured")
	}
	tpl, err := renderNotification(req)
	if err != nil {
		return false, err
	}
	if err := n.sender.Send(ctx, mailer.Message{
		To:      []string{strings.TrimSpace(req.RecipientEmail)},
		Subject: tpl.Subject,
		HTML:    tpl.HTML,
	}); err != nil {
		return false, err
	}
	return true, nil
}

type notificationStore interface {
	GetByID(ctx context.Context, id string) (*models.Application, error)
	MarkNotificationSent(ctx context.Context, id string, status models.ApplicationStatus, sentAt time.Time) (bool, error)
	ListUnnotified(ctx context.Context, updatedBefore time.Time, limit int) ([]models.Application, error)
}

type eventPublisher interface {
	Publish(evt events.Event)
}

type jobDispatcher interface {
	TryEnqueue(job jobs.Job) error
}

// NotificationServiceConfig governs the redelivery loop.
type NotificationServiceConfig struct {
	RetryInterval time.Duration
	RetryGrace    time.Duration
	BatchSize     int
}

// NotificationService dispatches status notifications and records confirmed delivery.
type NotificationService struct {
	notifier Notifier
	store    notificationStore
	queue    jobDispatcher
	events   eventPublisher
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      NotificationServiceConfig
	now      func() time.Time
}

// NewNotificationService constructs the notification service. queue and events may be nil.
func NewNotificationService(notifier Notifier, store notificationStore, queue jobDispatcher, publisher eventPublisher, metrics *MetricsService, logger *zap.Logger, cfg NotificationServiceConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RetryGrace <= 0 {
		cfg.RetryGrace = 2 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &NotificationService{
		notifier: notifier,
		store:    store,
		queue:    queue,
		events:   publisher,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Dispatch sends the notification for the application's current status and marks it delivered.
// A false result with nil error means delivery succeeded but the status moved on before it was marked.
func (s *NotificationService) Dispatch(ctx context.Context, app *models.Application) (bool, error) {
	if app == nil {
		return false, errors.New("nil application")
	}
	req := models.NotificationRequest{
		ApplicationID:  app.ID,
		Status:         app.Status,
		RecipientEmail: app.Payload.Email,
		RecipientName:  app.Payload.FullName,
	}
	if app.Status == models.ApplicationStatusRejected {
		req.ReviewerNotes = app.ReviewerNotes
	}

	sent, err := s.notifier.Send(ctx, req)
	s.metrics.RecordNotification(app.Status, err == nil && sent)
	if err != nil {
		return false, err
	}
	if !sent {
		return false, errors.New("notification not delivered")
	}

	sentAt := s.now()
	marked, err := s.store.MarkNotificationSent(ctx, app.ID, app.Status, sentAt)
	if err != nil {
		return false, fmt.Errorf("mark notification sent: %w", err)
	}
	if !marked {
		s.logger.Info("notification delivered for superseded status",
			zap.String("application_id", app.ID), zap.String("status", string(app.Status)))
		return false, nil
	}
	app.NotificationSent = true
	app.NotificationSentAt = &sentAt
	if s.events != nil {
		s.events.Publish(events.Event{
			Type:          events.TypeNotificationSent,
			ApplicationID: app.ID,
			ApplicantID:   app.ApplicantID,
			To:            string(app.Status),
			OccurredAt:    sentAt,
		})
	}
	return true, nil
}

// Enqueue schedules a background redelivery for the application's current status.
// It never blocks: a full queue returns jobs.ErrQueueFull and the row is left
// unnotified for RecoverPending.
func (s *NotificationService) Enqueue(app *models.Application) error {
	if s.queue == nil {
		return errors.New("notification queue not configured")
	}
	return s.queue.TryEnqueue(jobs.Job{ID: app.ID, Type: NotificationJobType, Payload: app.Status})
}

// RecoverPending enqueues applications whose latest notification was never confirmed.
func (s *NotificationService) RecoverPending(ctx context.Context) int {
	if s.queue == nil {
		return 0
	}
	pending, err := s.store.ListUnnotified(ctx, s.now().Add(-s.cfg.RetryGrace), s.cfg.BatchSize)
	if err != nil {
		s.logger.Sugar().Warnw("failed to list unnotified applications", "error", err)
		return 0
	}
	enqueued := 0
	for i := range pending {
		if err := s.Enqueue(&pending[i]); err != nil {
			if errors.Is(err, jobs.ErrQueueFull) {
				s.logger.Sugar().Infow("notification queue full, deferring recovery", "remaining", len(pending)-i)
				break
			}
			s.logger.Sugar().Warnw("failed to enqueue notification", "application_id", pending[i].ID, "error", err)
			continue
		}
		enqueued++
	}
	return enqueued
}

// StartRetryLoop runs RecoverPending on every tick until ctx is cancelled.
func (s *NotificationService) StartRetryLoop(ctx context.Context) {
	if s.cfg.RetryInterval <= 0 || s.queue == nil {
		return
	}
	ticker := time.NewTicker(s.cfg.RetryInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.RecoverPending(ctx); n > 0 {
					s.logger.Sugar().Infow("requeued pending notifications", "count", n)
				}
			}
		}
	}()
}

// NotificationWorker bridges queue jobs to NotificationService.
type NotificationWorker struct {
	service    *NotificationService
	store      notificationStore
	logger     *zap.Logger
	maxRetries int
}

// NewNotificationWorker constructs a worker.
func NewNotificationWorker(service *NotificationService, store notificationStore, maxRetries int, logger *zap.Logger) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &NotificationWorker{service: service, store: store, logger: logger, maxRetries: maxRetries}
}

// Handle processes a queue job. Jobs for a status the application has already left are dropped.
func (w *NotificationWorker) Handle(ctx context.Context, job jobs.Job) error {
	app, err := w.store.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	if status, ok := job.Payload.(models.ApplicationStatus); ok && status != app.Status {
		w.logger.Debug("dropping stale notification job", zap.String("application_id", app.ID), zap.String("status", string(status)))
		return nil
	}
	if app.NotificationSent {
		return nil
	}
	if _, err := w.service.Dispatch(ctx, app); err != nil {
		if job.Attempt >= w.maxRetries {
			w.logger.Sugar().Warnw("notification retries exhausted", "application_id", app.ID, "status", app.Status, "error", err)
		}
		return err
	}
	return nil
}
