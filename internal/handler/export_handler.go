package handler

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/editaliza/editaliza-api/internal/service"
	appErrors "github.com/editaliza/editaliza-api/pkg/errors"
	"github.com/editaliza/editaliza-api/pkg/response"
)

// ExportHandler exposes schedule download endpoints.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Schedule godoc
// @Summary Download the schedule as CSV, PDF or XLSX
// @Tags Exports
// @Security BearerAuth
// @Produce octet-stream
// @Param id path string true "Plan ID"
// @Param format query string false "csv, pdf or xlsx" default(csv)
// @Success 200 {file} binary
// @Router /plans/{id}/export [get]
func (h *ExportHandler) Schedule(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	format := service.ExportFormat(c.DefaultQuery("format", "csv"))
	file, err := h.exports.Schedule(c.Request.Context(), c.Param("id"), claims.UserID, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(200, file.ContentType, file.Payload)
}
