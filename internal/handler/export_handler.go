package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/provider-admission-api/internal/models"
	"github.com/noah-isme/provider-admission-api/internal/service"
	"github.com/noah-isme/provider-admission-api/pkg/response"
)

type exportService interface {
	ExportApplications(ctx context.Context, format string, filter models.ApplicationFilter) (*service.ExportResult, error)
}

// ExportHandler renders application reports as downloads.
type ExportHandler struct {
	exports exportService
}

// NewExportHandler constructs the handler.
func NewExportHandler(exports exportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Applications godoc
// @Summary Export applications
// @Tags Admin
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Param status query string false "Comma separated statuses"
// @Param tier query string false "Approval tier"
// @Success 200 {file} file
// @Router /admin/applications/export [get]
func (h *ExportHandler) Applications(c *gin.Context) {
	query, err := parseApplicationQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter, err := service.FilterFromQuery(query)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.exports.ExportApplications(c.Request.Context(), c.DefaultQuery("format", service.ExportFormatCSV), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("X-Export-Rows", strconv.Itoa(result.Rows))
	if result.Truncated {
		c.Header("X-Export-Truncated", "true")
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Data)
}
