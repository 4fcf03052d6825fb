package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/provider-admission-api/internal/models"
	appErrors "github.com/noah-isme/provider-admission-api/pkg/errors"
)

type pagedApplicationLister struct {
	apps  []models.Application
	pages []int
	err   error
}

func (p *pagedApplicationLister) List(_ context.Context, filter models.ApplicationFilter) ([]models.Application, int, error) {
	if p.err != nil {
		return nil, 0, p.err
	}
	p.pages = append(p.pages, filter.Page)
	start := (filter.Page - 1) * filter.PageSize
	if start >= len(p.apps) {
		return nil, len(p.apps), nil
	}
	end := start + filter.PageSize
	if end > len(p.apps) {
		end = len(p.apps)
	}
	return p.apps[start:end], len(p.apps), nil
}

func exportFixtureApps(n int) []models.Application {
	apps := make([]models.Application, n)
	for i := range apps {
		score := 40 + i%60
		tier := models.ApprovalTierStandard
		apps[i] = models.Application{
			ID:             fmt.Sprintf("app-%d", i),
			Payload:        models.ApplicationPayload{FullName: fmt.Sprintf("Provider %d", i), Email: "p@example.com"},
			Status:         models.ApplicationStatusSubmitted,
			AutomatedScore: &score,
			ApprovalTier:   &tier,
			SubmittedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		}
	}
	return apps
}

func TestExportServiceCSV(t *testing.T) {
	lister := &pagedApplicationLister{apps: exportFixtureApps(3)}
	lister.apps[0].Payload.FullName = "=HYPERLINK(\"evil\")"
	svc := NewExportService(lister, ExportConfig{}, zap.NewNop(), nil, nil)

	result, err := svc.ExportApplications(context.Background(), "CSV", models.ApplicationFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Rows)
	assert.False(t, result.Truncated)
	assert.Contains(t, result.ContentType, "text/csv")
	assert.Contains(t, result.Filename, ".csv")

	records, err := csv.NewReader(bytes.NewReader(result.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, applicationExportHeaders, records[0])
	assert.NotEqual(t, '=', rune(records[1][1][0]))
	assert.Equal(t, "2026-01-02T03:04:05Z", records[1][9])
}

func TestExportServicePDF(t *testing.T) {
	svc := NewExportService(&pagedApplicationLister{apps: exportFixtureApps(2)}, ExportConfig{}, nil, nil, nil)
	result, err := svc.ExportApplications(context.Background(), ExportFormatPDF, models.ApplicationFilter{})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, bytes.HasPrefix(result.Data, []byte("%PDF")))
}

func TestExportServicePagesAndTruncates(t *testing.T) {
	lister := &pagedApplicationLister{apps: exportFixtureApps(450)}
	svc := NewExportService(lister, ExportConfig{MaxRows: 300}, nil, nil, nil)

	result, err := svc.ExportApplications(context.Background(), "", models.ApplicationFilter{})
	require.NoError(t, err)
	assert.Equal(t, 300, result.Rows)
	assert.True(t, result.Truncated)
	assert.Equal(t, []int{1, 2}, lister.pages)
}

func TestExportServiceErrors(t *testing.T) {
	svc := NewExportService(&pagedApplicationLister{}, ExportConfig{}, nil, nil, nil)
	_, err := svc.ExportApplications(context.Background(), "xlsx", models.ApplicationFilter{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	failing := NewExportService(&pagedApplicationLister{err: assert.AnError}, ExportConfig{}, nil, nil, nil)
	_, err = failing.ExportApplications(context.Background(), "csv", models.ApplicationFilter{})
	assert.True(t, errors.Is(err, assert.AnError))
}
