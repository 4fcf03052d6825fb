package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/provider-admission-api/internal/models"
	appErrors "github.com/noah-isme/provider-admission-api/pkg/errors"
	"github.com/noah-isme/provider-admission-api/pkg/export"
)

// Supported export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

const exportPageSize = 200

var applicationExportHeaders = []string{
	"ID", "Applicant", "Email", "Status", "Score", "Tier", "Auto Approved",
	"Technical Score", "Notified", "Submitted At", "Reviewed At",
}

type applicationLister interface {
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, int, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
	ContentType() string
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	MaxRows int
}

// ExportResult is a rendered export ready to stream to the client.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
	Rows        int
	Truncated   bool
}

// ExportService renders the application review queue as CSV or PDF.
type ExportService struct {
	apps   applicationLister
	csv    csvRenderer
	pdf    pdfRenderer
	logger *zap.Logger
	cfg    ExportConfig
	now    func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(apps applicationLister, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 5000
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{apps: apps, csv: csv, pdf: pdf, logger: logger, cfg: cfg, now: time.Now}
}

// ExportApplications renders every application matching filter, up to the configured row cap.
func (s *ExportService) ExportApplications(ctx context.Context, format string, filter models.ApplicationFilter) (*ExportResult, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}

	apps, truncated, err := s.collect(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load applications for export")
	}
	dataset := buildApplicationDataset(apps)

	result := &ExportResult{
		Filename:  fmt.Sprintf("applications_%s.%s", s.now().UTC().Format("20060102_150405"), format),
		Rows:      len(apps),
		Truncated: truncated,
	}
	switch format {
	case ExportFormatPDF:
		result.Data, err = s.pdf.Render(dataset, "Provider applications")
		result.ContentType = s.pdf.ContentType()
	default:
		result.Data, err = s.csv.Render(dataset)
		result.ContentType = s.csv.ContentType()
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	if truncated {
		s.logger.Warn("application export truncated", zap.Int("max_rows", s.cfg.MaxRows))
	}
	return result, nil
}

func (s *ExportService) collect(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, bool, error) {
	filter.PageSize = exportPageSize
	var out []models.Application
	for page := 1; ; page++ {
		filter.Page = page
		batch, total, err := s.apps.List(ctx, filter)
		if err != nil {
			return nil, false, err
		}
		out = append(out, batch...)
		if len(out) >= s.cfg.MaxRows {
			return out[:s.cfg.MaxRows], total > s.cfg.MaxRows, nil
		}
		if len(batch) < exportPageSize || len(out) >= total {
			return out, false, nil
		}
	}
}

func buildApplicationDataset(apps []models.Application) export.Dataset {
	rows := make([]map[string]string, 0, len(apps))
	for _, app := range apps {
		row := map[string]string{
			"ID":            app.ID,
			"Applicant":     app.Payload.FullName,
			"Email":         app.Payload.Email,
			"Status":        string(app.Status),
			"Auto Approved": strconv.FormatBool(app.AutoApproved),
			"Notified":      strconv.FormatBool(app.NotificationSent),
			"Submitted At":  app.SubmittedAt.UTC().Format(time.RFC3339),
		}
		if app.AutomatedScore != nil {
			row["Score"] = strconv.Itoa(*app.AutomatedScore)
		}
		if app.ApprovalTier != nil {
			row["Tier"] = string(*app.ApprovalTier)
		}
		if app.TechnicalAssessmentScore != nil {
			row["Technical Score"] = strconv.Itoa(*app.TechnicalAssessmentScore)
		}
		if app.ReviewedAt != nil {
			row["Reviewed At"] = app.ReviewedAt.UTC().Format(time.RFC3339)
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: applicationExportHeaders, Rows: rows}
}
