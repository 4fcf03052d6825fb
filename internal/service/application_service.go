package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/provider-admission-api/internal/dto"
	"github.com/noah-isme/provider-admission-api/internal/models"
	"github.com/noah-isme/provider-admission-api/internal/repository"
	appErrors "github.com/noah-isme/provider-admission-api/pkg/errors"
	"github.com/noah-isme/provider-admission-api/pkg/events"
)

const (
	warnNotificationDeferred = "notification could not be delivered and will be retried"
	warnReviewFieldsIgnored  = "reviewer notes and technical score are only recorded on approval or rejection"
)

type applicationStore interface {
	Create(ctx context.Context, app *models.Application) error
	GetByID(ctx context.Context, id string) (*models.Application, error)
	FindActiveByApplicant(ctx context.Context, applicantID string) (*models.Application, error)
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, int, error)
	UpdateStatus(ctx context.Context, params repository.UpdateStatusParams) error
}

type applicationNotifier interface {
	Dispatch(ctx context.Context, app *models.Application) (bool, error)
	Enqueue(app *models.Application) error
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type analyticsInvalidator interface {
	InvalidateApplicationAnalytics(ctx context.Context) error
}

// ApplicationServiceConfig holds admission policy switches.
type ApplicationServiceConfig struct {
	// BlockInvalid rejects submissions that fail validation instead of accepting them with warnings.
	BlockInvalid bool
	// AutoApprove moves auto-approved submissions straight to approved as the system actor.
	AutoApprove bool
}

// ApplicationService coordinates provider submissions and the review workflow.
type ApplicationService struct {
	store     applicationStore
	scoring   *ScoringEngine
	validator *ApplicationValidator
	notifier  applicationNotifier
	audit     auditWriter
	events    eventPublisher
	analytics analyticsInvalidator
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       ApplicationServiceConfig
	now       func() time.Time
}

// NewApplicationService wires the application service. notifier, audit, publisher and analytics may be nil.
func NewApplicationService(
	store applicationStore,
	scoring *ScoringEngine,
	validator *ApplicationValidator,
	notifier applicationNotifier,
	audit auditWriter,
	publisher eventPublisher,
	analytics analyticsInvalidator,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg ApplicationServiceConfig,
) *ApplicationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if scoring == nil {
		scoring = NewScoringEngine(DefaultScoringRules())
	}
	if validator == nil {
		validator = NewApplicationValidator(nil)
	}
	return &ApplicationService{
		store:     store,
		scoring:   scoring,
		validator: validator,
		notifier:  notifier,
		audit:     audit,
		events:    publisher,
		analytics: analytics,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Validate runs the validation gate without side effects.
func (s *ApplicationService) Validate(payload models.ApplicationPayload) models.ValidationResult {
	return s.validator.Validate(payload)
}

// Score runs the scoring engine without side effects.
func (s *ApplicationService) Score(payload models.ApplicationPayload) models.ScoreResult {
	return s.scoring.Score(payload)
}

// Submit validates, scores and stores a new application for the calling provider.
func (s *ApplicationService) Submit(ctx context.Context, payload models.ApplicationPayload, actor *models.JWTClaims) (*dto.ApplicationEnvelope, error) {
	applicantID := actor.Identity()
	if applicantID == "" {
		return nil, appErrors.ErrUnauthorized
	}

	validation := s.validator.Validate(payload)
	var warnings []string
	if !validation.IsValid {
		if s.cfg.BlockInvalid {
			s.metrics.RecordSubmission("invalid", nil)
			return nil, appErrors.WithDetails(
				appErrors.Clone(appErrors.ErrValidation, "application is incomplete"),
				map[string]interface{}{"issues": validation.Issues},
			)
		}
		warnings = append(warnings, validation.Issues...)
	}

	if existing, err := s.store.FindActiveByApplicant(ctx, applicantID); err == nil {
		s.metrics.RecordSubmission("duplicate", nil)
		return nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrApplicationExists, appErrors.ErrApplicationExists.Message),
			map[string]interface{}{"application_id": existing.ID, "status": existing.Status},
		)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing applications")
	}

	result := s.scoring.Score(payload)
	score := result.Score
	tier := result.Tier
	breakdown := result.Breakdown
	now := s.now()
	app := &models.Application{
		ApplicantID:    applicantID,
		Payload:        payload,
		Status:         models.ApplicationStatusSubmitted,
		AutomatedScore: &score,
		ApprovalTier:   &tier,
		AutoApproved:   result.AutoApproved,
		ScoreBreakdown: &breakdown,
		SubmittedAt:    now,
		UpdatedAt:      now,
	}
	if err := s.store.Create(ctx, app); err != nil {
		if errors.Is(err, repository.ErrActiveApplicationExists) {
			s.metrics.RecordSubmission("duplicate", nil)
			return nil, appErrors.ErrApplicationExists
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store application")
	}
	s.metrics.RecordSubmission("accepted", &result)

	s.publish(events.Event{
		Type:          events.TypeApplicationSubmitted,
		ApplicationID: app.ID,
		ApplicantID:   app.ApplicantID,
		To:            string(app.Status),
		Actor:         applicantID,
		OccurredAt:    now,
	})
	s.emitAudit(ctx, applicantID, models.AuditActionApplicationSubmit, app.ID, nil, map[string]interface{}{
		"status":        app.Status,
		"score":         score,
		"tier":          tier,
		"auto_approved": result.AutoApproved,
	})
	s.invalidateAnalytics(ctx)

	if s.cfg.AutoApprove && result.AutoApproved {
		envelope, err := s.applyTransition(ctx, app, TransitionCommand{
			ApplicationID: app.ID,
			ExpectedFrom:  models.ApplicationStatusSubmitted,
			To:            models.ApplicationStatusApproved,
			Actor:         models.SystemActor,
		})
		if err != nil {
			// The submission stands; reviewers can still approve it by hand.
			s.logger.Warn("auto-approval failed", zap.String("application_id", app.ID), zap.Error(err))
			envelope = &dto.ApplicationEnvelope{Application: app}
			envelope.NotificationSent, envelope.Warnings = s.notify(ctx, app)
		}
		envelope.Warnings = append(warnings, envelope.Warnings...)
		return envelope, nil
	}

	sent, notifyWarnings := s.notify(ctx, app)
	return &dto.ApplicationEnvelope{
		Application:      app,
		NotificationSent: sent,
		Warnings:         append(warnings, notifyWarnings...),
	}, nil
}

// Get returns an application visible to the actor. Providers only see their own.
func (s *ApplicationService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Application, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	app, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin && app.ApplicantID != actor.Identity() {
		return nil, appErrors.ErrForbidden
	}
	return app, nil
}

// FilterFromQuery validates list query parameters and converts them to a repository filter.
func FilterFromQuery(query dto.ApplicationQuery) (models.ApplicationFilter, error) {
	filter := models.ApplicationFilter{
		AutoApproved: query.AutoApproved,
		Search:       strings.TrimSpace(query.Search),
		Page:         query.Page,
		PageSize:     query.PageSize,
	}
	for _, status := range query.Status {
		if !status.Valid() {
			return filter, appErrors.Clone(appErrors.ErrValidation, "invalid status filter: "+string(status))
		}
		filter.Status = append(filter.Status, status)
	}
	if tier := strings.TrimSpace(query.Tier); tier != "" {
		t := models.ApprovalTier(strings.ToLower(tier))
		if !t.Valid() {
			return filter, appErrors.Clone(appErrors.ErrValidation, "invalid tier filter: "+tier)
		}
		filter.Tier = &t
	}
	return filter, nil
}

// List returns applications for the admin review queue.
func (s *ApplicationService) List(ctx context.Context, query dto.ApplicationQuery) ([]models.Application, *models.Pagination, error) {
	filter, err := FilterFromQuery(query)
	if err != nil {
		return nil, nil, err
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	apps, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
	}
	if apps == nil {
		apps = []models.Application{}
	}
	return apps, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// ListMine returns every application submitted by the actor, latest first.
func (s *ApplicationService) ListMine(ctx context.Context, actor *models.JWTClaims) ([]models.Application, error) {
	applicantID := actor.Identity()
	if applicantID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	apps, _, err := s.store.List(ctx, models.ApplicationFilter{ApplicantID: applicantID, Page: 1, PageSize: 100})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
	}
	if apps == nil {
		apps = []models.Application{}
	}
	return apps, nil
}

// TransitionCommand requests a status change guarded by the status the caller observed.
type TransitionCommand struct {
	ApplicationID            string
	ExpectedFrom             models.ApplicationStatus
	To                       models.ApplicationStatus
	Actor                    string
	ReviewerNotes            string
	TechnicalAssessmentScore *int
}

// Transition moves an application along the lifecycle. Illegal edges and lost races are reported as
// *TransitionError. Notification failure does not undo the change; it is reported in Warnings.
func (s *ApplicationService) Transition(ctx context.Context, cmd TransitionCommand) (*dto.ApplicationEnvelope, error) {
	if strings.TrimSpace(cmd.ApplicationID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "application id is required")
	}
	if strings.TrimSpace(cmd.Actor) == "" {
		return nil, appErrors.ErrUnauthorized
	}
	if !cmd.ExpectedFrom.Valid() || !cmd.To.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown application status")
	}
	if score := cmd.TechnicalAssessmentScore; score != nil && (*score < 0 || *score > 100) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "technical assessment score must be between 0 and 100")
	}
	if !IsAllowedTransition(cmd.ExpectedFrom, cmd.To) {
		s.metrics.RecordTransition(cmd.ExpectedFrom, cmd.To, "illegal")
		return nil, &TransitionError{Kind: TransitionIllegal, ApplicationID: cmd.ApplicationID, From: cmd.ExpectedFrom, To: cmd.To}
	}

	app, err := s.load(ctx, cmd.ApplicationID)
	if err != nil {
		return nil, err
	}
	return s.applyTransition(ctx, app, cmd)
}

func (s *ApplicationService) applyTransition(ctx context.Context, app *models.Application, cmd TransitionCommand) (*dto.ApplicationEnvelope, error) {
	if app.Status != cmd.ExpectedFrom {
		s.metrics.RecordTransition(cmd.ExpectedFrom, cmd.To, "conflict")
		return nil, &TransitionError{Kind: TransitionConflict, ApplicationID: app.ID, From: cmd.ExpectedFrom, To: cmd.To, Current: app.Status}
	}

	now := s.now()
	params := repository.UpdateStatusParams{
		ID:         app.ID,
		From:       cmd.ExpectedFrom,
		To:         cmd.To,
		ReviewedBy: cmd.Actor,
		UpdatedAt:  now,
	}
	var warnings []string
	notes := strings.TrimSpace(cmd.ReviewerNotes)
	if cmd.To.Terminal() {
		params.ReviewedAt = &now
		if notes != "" {
			params.ReviewerNotes = &notes
		}
		params.TechnicalAssessmentScore = cmd.TechnicalAssessmentScore
	} else if notes != "" || cmd.TechnicalAssessmentScore != nil {
		warnings = append(warnings, warnReviewFieldsIgnored)
	}

	if err := s.store.UpdateStatus(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.metrics.RecordTransition(cmd.ExpectedFrom, cmd.To, "conflict")
			return nil, s.conflict(ctx, app.ID, cmd)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update application status")
	}
	s.metrics.RecordTransition(cmd.ExpectedFrom, cmd.To, "applied")

	previous := app.Status
	app.Status = cmd.To
	app.ReviewedBy = &params.ReviewedBy
	app.NotificationSent = false
	app.NotificationSentAt = nil
	app.UpdatedAt = now
	if params.ReviewedAt != nil {
		app.ReviewedAt = params.ReviewedAt
	}
	if params.ReviewerNotes != nil {
		app.ReviewerNotes = params.ReviewerNotes
	}
	if params.TechnicalAssessmentScore != nil {
		app.TechnicalAssessmentScore = params.TechnicalAssessmentScore
	}

	sent, notifyWarnings := s.notify(ctx, app)
	s.publish(events.Event{
		Type:          events.TypeStatusChanged,
		ApplicationID: app.ID,
		ApplicantID:   app.ApplicantID,
		From:          string(previous),
		To:            string(app.Status),
		Actor:         cmd.Actor,
		OccurredAt:    now,
	})
	newValues := map[string]interface{}{"status": app.Status}
	if params.ReviewerNotes != nil {
		newValues["reviewer_notes"] = *params.ReviewerNotes
	}
	if params.TechnicalAssessmentScore != nil {
		newValues["technical_assessment_score"] = *params.TechnicalAssessmentScore
	}
	s.emitAudit(ctx, cmd.Actor, models.AuditActionApplicationTransition, app.ID,
		map[string]interface{}{"status": previous}, newValues)
	s.invalidateAnalytics(ctx)

	return &dto.ApplicationEnvelope{
		Application:      app,
		NotificationSent: sent,
		Warnings:         append(warnings, notifyWarnings...),
	}, nil
}

// ResendNotification re-dispatches the notification for the application's current status.
func (s *ApplicationService) ResendNotification(ctx context.Context, id string, actor string) (*dto.ApplicationEnvelope, error) {
	if s.notifier == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "notifications not configured")
	}
	app, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	sent, warnings := s.notify(ctx, app)
	s.emitAudit(ctx, actor, models.AuditActionNotificationResend, app.ID, nil,
		map[string]interface{}{"status": app.Status, "notification_sent": sent})
	return &dto.ApplicationEnvelope{Application: app, NotificationSent: sent, Warnings: warnings}, nil
}

func (s *ApplicationService) load(ctx context.Context, id string) (*models.Application, error) {
	app, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	return app, nil
}

func (s *ApplicationService) conflict(ctx context.Context, id string, cmd TransitionCommand) error {
	terr := &TransitionError{Kind: TransitionConflict, ApplicationID: id, From: cmd.ExpectedFrom, To: cmd.To}
	if current, err := s.store.GetByID(ctx, id); err == nil {
		terr.Current = current.Status
	} else if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "application not found")
	}
	return terr
}

// notify awaits delivery and, on failure, hands the application to the retry queue.
func (s *ApplicationService) notify(ctx context.Context, app *models.Application) (bool, []string) {
	if s.notifier == nil {
		return false, nil
	}
	sent, err := s.notifier.Dispatch(ctx, app)
	if err == nil {
		return sent, nil
	}
	s.logger.Warn("status notification failed",
		zap.String("application_id", app.ID),
		zap.String("status", string(app.Status)),
		zap.Error(err))
	if qErr := s.notifier.Enqueue(app); qErr != nil {
		s.logger.Warn("failed to queue notification retry", zap.String("application_id", app.ID), zap.Error(qErr))
	}
	return false, []string{warnNotificationDeferred}
}

func (s *ApplicationService) publish(evt events.Event) {
	if s.events == nil {
		return
	}
	s.events.Publish(evt)
}

func (s *ApplicationService) invalidateAnalytics(ctx context.Context) {
	if s.analytics == nil {
		return
	}
	if err := s.analytics.InvalidateApplicationAnalytics(ctx); err != nil {
		s.logger.Warn("failed to invalidate application analytics", zap.Error(err))
	}
}

func (s *ApplicationService) emitAudit(ctx context.Context, actor, action, applicationID string, oldValues, newValues map[string]interface{}) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		Action:     action,
		Resource:   models.AuditResourceApplication,
		ResourceID: &applicationID,
		IPAddress:  "system",
		UserAgent:  "application-service",
	}
	if actor != "" {
		log.UserID = &actor
	}
	if oldValues != nil {
		log.OldValues, _ = json.Marshal(oldValues)
	}
	if newValues != nil {
		log.NewValues, _ = json.Marshal(newValues)
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
