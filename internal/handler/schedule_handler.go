package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/editaliza/editaliza-api/internal/dto"
	"github.com/editaliza/editaliza-api/internal/models"
	"github.com/editaliza/editaliza-api/internal/service"
	appErrors "github.com/editaliza/editaliza-api/pkg/errors"
	"github.com/editaliza/editaliza-api/pkg/response"
)

// ScheduleHandler exposes schedule generation and preview endpoints.
type ScheduleHandler struct {
	generator *service.ScheduleGeneratorService
	sessions  *service.SessionService
}

// NewScheduleHandler constructs ScheduleHandler.
func NewScheduleHandler(generator *service.ScheduleGeneratorService, sessions *service.SessionService) *ScheduleHandler {
	return &ScheduleHandler{generator: generator, sessions: sessions}
}

// Generate godoc
// @Summary Generate the study schedule for a plan
// @Tags Schedule
// @Security BearerAuth
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} response.Envelope
// @Router /plans/{id}/generate [post]
func (h *ScheduleHandler) Generate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.generator.Generate(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Get godoc
// @Summary Get the schedule grouped by date
// @Tags Schedule
// @Security BearerAuth
// @Produce json
// @Param id path string true "Plan ID"
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD)"
// @Param status query string false "Filter by session status"
// @Param type query string false "Filter by session type"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /plans/{id}/schedule [get]
func (h *ScheduleHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	query := dto.SessionQuery{
		From:   c.Query("from"),
		To:     c.Query("to"),
		Status: models.SessionStatus(c.Query("status")),
		Type:   models.SessionType(c.Query("type")),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		query.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "100")); err == nil {
		query.PageSize = size
	}

	days, total, err := h.sessions.ListByPlan(c.Request.Context(), c.Param("id"), claims.UserID, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := &models.Pagination{Page: query.Page, PageSize: query.PageSize, TotalCount: total}
	response.JSON(c, http.StatusOK, days, pagination)
}

// Replan godoc
// @Summary Reschedule overdue sessions into free capacity
// @Tags Schedule
// @Security BearerAuth
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} response.Envelope
// @Router /plans/{id}/replan [post]
func (h *ScheduleHandler) Replan(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.sessions.Replan(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
