package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/provider-admission-api/internal/dto"
	"github.com/noah-isme/provider-admission-api/internal/models"
	"github.com/noah-isme/provider-admission-api/internal/service"
	appErrors "github.com/noah-isme/provider-admission-api/pkg/errors"
	"github.com/noah-isme/provider-admission-api/pkg/response"
)

type applicationService interface {
	Validate(payload models.ApplicationPayload) models.ValidationResult
	Score(payload models.ApplicationPayload) models.ScoreResult
	Submit(ctx context.Context, payload models.ApplicationPayload, actor *models.JWTClaims) (*dto.ApplicationEnvelope, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Application, error)
	ListMine(ctx context.Context, actor *models.JWTClaims) ([]models.Application, error)
	List(ctx context.Context, query dto.ApplicationQuery) ([]models.Application, *models.Pagination, error)
	Transition(ctx context.Context, cmd service.TransitionCommand) (*dto.ApplicationEnvelope, error)
	ResendNotification(ctx context.Context, id string, actor string) (*dto.ApplicationEnvelope, error)
}

// ApplicationHandler serves provider-facing and admin application endpoints.
type ApplicationHandler struct {
	applications applicationService
}

// NewApplicationHandler constructs the handler.
func NewApplicationHandler(applications applicationService) *ApplicationHandler {
	return &ApplicationHandler{applications: applications}
}

// Validate godoc
// @Summary Validate an application payload without submitting it
// @Tags Applications
// @Accept json
// @Produce json
// @Param payload body models.ApplicationPayload true "Application payload"
// @Success 200 {object} response.Envelope
// @Router /applications/validate [post]
func (h *ApplicationHandler) Validate(c *gin.Context) {
	payload, ok := bindPayload(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, h.applications.Validate(payload), nil)
}

// Score godoc
// @Summary Preview the automated score for a payload
// @Tags Applications
// @Accept json
// @Produce json
// @Param payload body models.ApplicationPayload true "Application payload"
// @Success 200 {object} response.Envelope
// @Router /applications/score [post]
func (h *ApplicationHandler) Score(c *gin.Context) {
	payload, ok := bindPayload(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, h.applications.Score(payload), nil)
}

// Submit godoc
// @Summary Submit a provider application
// @Tags Applications
// @Accept json
// @Produce json
// @Param payload body models.ApplicationPayload true "Application payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /applications [post]
func (h *ApplicationHandler) Submit(c *gin.Context) {
	payload, ok := bindPayload(c)
	if !ok {
		return
	}
	result, err := h.applications.Submit(c.Request.Context(), payload, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Mine godoc
// @Summary List the caller's applications
// @Tags Applications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /applications/me [get]
func (h *ApplicationHandler) Mine(c *gin.Context) {
	apps, err := h.applications.ListMine(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, apps, nil)
}

// Get godoc
// @Summary Get an application
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /applications/{id} [get]
func (h *ApplicationHandler) Get(c *gin.Context) {
	app, err := h.applications.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// List godoc
// @Summary List applications for review
// @Tags Admin
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param tier query string false "Approval tier"
// @Param auto_approved query bool false "Auto-approved only"
// @Param search query string false "Name, email or business name"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admin/applications [get]
func (h *ApplicationHandler) List(c *gin.Context) {
	query, err := parseApplicationQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	apps, pagination, err := h.applications.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, apps, pagination)
}

// Transition godoc
// @Summary Move an application to a new status
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body dto.TransitionApplicationRequest true "Transition"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/applications/{id}/transition [post]
func (h *ApplicationHandler) Transition(c *gin.Context) {
	var req dto.TransitionApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.applications.Transition(c.Request.Context(), service.TransitionCommand{
		ApplicationID:            c.Param("id"),
		ExpectedFrom:             req.ExpectedStatus,
		To:                       req.Status,
		Actor:                    claims.Identity(),
		ReviewerNotes:            req.ReviewerNotes,
		TechnicalAssessmentScore: req.TechnicalAssessmentScore,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Notify godoc
// @Summary Re-send the status notification for an application
// @Tags Admin
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Router /admin/applications/{id}/notify [post]
func (h *ApplicationHandler) Notify(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.applications.ResendNotification(c.Request.Context(), c.Param("id"), claims.Identity())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

func bindPayload(c *gin.Context) (models.ApplicationPayload, bool) {
	var payload models.ApplicationPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return payload, false
	}
	return payload, true
}

func parseApplicationQuery(c *gin.Context) (dto.ApplicationQuery, error) {
	query := dto.ApplicationQuery{
		Tier:   c.Query("tier"),
		Search: c.Query("search"),
	}
	for _, raw := range c.QueryArray("status") {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				query.Status = append(query.Status, models.ApplicationStatus(strings.ToLower(part)))
			}
		}
	}
	if raw := c.Query("auto_approved"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return query, appErrors.Clone(appErrors.ErrValidation, "invalid auto_approved parameter")
		}
		query.AutoApproved = &parsed
	}
	var err error
	if query.Page, err = parsePositiveInt(c.Query("page"), "page"); err != nil {
		return query, err
	}
	if query.PageSize, err = parsePositiveInt(c.Query("page_size"), "page_size"); err != nil {
		return query, err
	}
	return query, nil
}

func parsePositiveInt(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid "+name+" parameter")
	}
	return value, nil
}
