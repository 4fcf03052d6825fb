package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/provider-admission-api/internal/models"
)

const applicationColumns = `id, applicant_id, payload, status, automated_score, approval_tier, auto_approved, score_breakdown,
       reviewer_notes, technical_assessment_score, reviewed_by, notification_sent, notification_sent_at,
       submitted_at, reviewed_at, updated_at`

// ErrActiveApplicationExists is returned by Create when the applicant already holds an active application.
var ErrActiveApplicationExists = errors.New("active application exists for applicant")

const uniqueViolation = "23505"

// ApplicationRepository persists provider applications.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs the repository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// Create inserts a new application row, assigning id and timestamps when absent.
func (r *ApplicationRepository) Create(ctx context.Context, app *models.Application) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	if app.Status == "" {
		app.Status = models.ApplicationStatusSubmitted
	}
	now := time.Now().UTC()
	if app.SubmittedAt.IsZero() {
		app.SubmittedAt = now
	}
	app.UpdatedAt = app.SubmittedAt
	const query = `INSERT INTO provider_applications
	(id, applicant_id, payload, status, automated_score, approval_tier, auto_approved, score_breakdown,
	 notification_sent, submitted_at, updated_at)
	VALUES (:id, :applicant_id, :payload, :status, :automated_score, :approval_tier, :auto_approved, :score_breakdown,
	 :notification_sent, :submitted_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, app); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrActiveApplicationExists
		}
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

// GetByID fetches an application by identifier.
func (r *ApplicationRepository) GetByID(ctx context.Context, id string) (*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM provider_applications WHERE id = $1`
	var app models.Application
	if err := r.db.GetContext(ctx, &app, query, id); err != nil {
		return nil, err
	}
	return &app, nil
}

// FindActiveByApplicant returns the latest application of applicantID that still blocks resubmission.
func (r *ApplicationRepository) FindActiveByApplicant(ctx context.Context, applicantID string) (*models.Application, error) {
	args := []interface{}{applicantID}
	placeholders := make([]string, len(models.ActiveApplicationStatuses))
	for i, status := range models.ActiveApplicationStatuses {
		args = append(args, status)
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}
	query := fmt.Sprintf(`SELECT %s FROM provider_applications
	WHERE applicant_id = $1 AND status IN (%s)
	ORDER BY submitted_at DESC LIMIT 1`, applicationColumns, strings.Join(placeholders, ","))
	var app models.Application
	if err := r.db.GetContext(ctx, &app, query, args...); err != nil {
		return nil, err
	}
	return &app, nil
}

// List returns applications matching the filter (latest first) and the total match count.
func (r *ApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, int, error) {
	where, args := buildApplicationFilter(filter)

	var total int
	countQuery := "SELECT COUNT(*) FROM provider_applications" + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count applications: %w", err)
	}

	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	query := fmt.Sprintf("SELECT %s FROM provider_applications%s ORDER BY submitted_at DESC LIMIT %d OFFSET %d",
		applicationColumns, where, size, (page-1)*size)

	var apps []models.Application
	if err := r.db.SelectContext(ctx, &apps, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list applications: %w", err)
	}
	return apps, total, nil
}

func buildApplicationFilter(filter models.ApplicationFilter) (string, []interface{}) {
	args := make([]interface{}, 0, 6)
	conditions := make([]string, 0, 5)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Tier != nil {
		args = append(args, *filter.Tier)
		conditions = append(conditions, fmt.Sprintf("approval_tier = $%d", len(args)))
	}
	if filter.ApplicantID != "" {
		args = append(args, filter.ApplicantID)
		conditions = append(conditions, fmt.Sprintf("applicant_id = $%d", len(args)))
	}
	if filter.AutoApproved != nil {
		args = append(args, *filter.AutoApproved)
		conditions = append(conditions, fmt.Sprintf("auto_approved = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("(payload->>'full_name' ILIKE $%d OR payload->>'email' ILIKE $%d OR payload->>'business_name' ILIKE $%d)", n, n, n))
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// UpdateStatusParams groups the columns written by a status transition.
type UpdateStatusParams struct {
	ID                       string
	From                     models.ApplicationStatus
	To                       models.ApplicationStatus
	ReviewedBy               string
	ReviewedAt               *time.Time
	ReviewerNotes            *string
	TechnicalAssessmentScore *int
	UpdatedAt                time.Time
}

// UpdateStatus applies a transition only if the row is still in params.From.
// It resets notification_sent and returns sql.ErrNoRows when the precondition no longer holds.
func (r *ApplicationRepository) UpdateStatus(ctx context.Context, params UpdateStatusParams) error {
	setParts := []string{
		"status = :to_status",
		"reviewed_by = :reviewed_by",
		"notification_sent = FALSE",
		"notification_sent_at = NULL",
		"updated_at = :updated_at",
	}
	if params.ReviewedAt != nil {
		setParts = append(setParts, "reviewed_at = :reviewed_at")
	}
	if params.ReviewerNotes != nil {
		setParts = append(setParts, "reviewer_notes = :reviewer_notes")
	}
	if params.TechnicalAssessmentScore != nil {
		setParts = append(setParts, "technical_assessment_score = :technical_assessment_score")
	}
	if params.UpdatedAt.IsZero() {
		params.UpdatedAt = time.Now().UTC()
	}
	query := fmt.Sprintf("UPDATE provider_applications SET %s WHERE id = :id AND status = :from_status",
		strings.Join(setParts, ", "))
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":                         params.ID,
		"from_status":                params.From,
		"to_status":                  params.To,
		"reviewed_by":                params.ReviewedBy,
		"reviewed_at":                params.ReviewedAt,
		"reviewer_notes":             params.ReviewerNotes,
		"technical_assessment_score": params.TechnicalAssessmentScore,
		"updated_at":                 params.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("update application status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check application update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkNotificationSent records delivery for the notification of status.
// It reports false when the application has since moved to another status.
func (r *ApplicationRepository) MarkNotificationSent(ctx context.Context, id string, status models.ApplicationStatus, sentAt time.Time) (bool, error) {
	const query = `UPDATE provider_applications SET notification_sent = TRUE, notification_sent_at = $1
	WHERE id = $2 AND status = $3`
	result, err := r.db.ExecContext(ctx, query, sentAt, id, status)
	if err != nil {
		return false, fmt.Errorf("mark notification sent: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check notification update rows: %w", err)
	}
	return rows > 0, nil
}

// ListUnnotified returns applications whose latest notification is still pending and older than the cutoff.
func (r *ApplicationRepository) ListUnnotified(ctx context.Context, updatedBefore time.Time, limit int) ([]models.Application, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + applicationColumns + ` FROM provider_applications
	WHERE notification_sent = FALSE AND updated_at < $1
	ORDER BY updated_at ASC LIMIT $2`
	var apps []models.Application
	if err := r.db.SelectContext(ctx, &apps, query, updatedBefore, limit); err != nil {
		return nil, fmt.Errorf("list unnotified applications: %w", err)
	}
	return apps, nil
}

// Aggregate returns grouped counts per status and tier.
func (r *ApplicationRepository) Aggregate(ctx context.Context) ([]models.ApplicationAggregateRow, error) {
	const query = `SELECT status, approval_tier,
       COUNT(*) AS total,
       COUNT(*) FILTER (WHERE auto_approved) AS auto_approved,
       COUNT(automated_score) AS scored,
       COALESCE(SUM(automated_score), 0) AS score_sum
	FROM provider_applications
	GROUP BY status, approval_tier`
	var rows []models.ApplicationAggregateRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("aggregate applications: %w", err)
	}
	return rows, nil
}
