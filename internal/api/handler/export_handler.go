package handler

import (
	"bytes"
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"j-planner/backend/internal/dto"
	"j-planner/backend/internal/service"
	"j-planner/backend/pkg/response"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeICS  = "text/calendar; charset=utf-8"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportWeeklyPlan 周计划导出为 Excel
// GET /api/v1/export/week?week_offset=0
func (h *ExportHandler) ExportWeeklyPlan(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.WeeklyPlanRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	buf, filename, err := h.exportSvc.WeeklyPlanXLSX(c.Request.Context(), userID, req.WeekOffset)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	sendAttachment(c, buf, filename, contentTypeXLSX)
}

// ExportSessions 待完成课时导出为 iCalendar
// GET /api/v1/export/ics
func (h *ExportHandler) ExportSessions(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.SessionsICS(c.Request.Context(), userID)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	sendAttachment(c, buf, filename, contentTypeICS)
}

// sendAttachment 设置下载响应头并写出文件
func sendAttachment(c *gin.Context, buf *bytes.Buffer, filename, contentType string) {
	encodedFilename := url.QueryEscape(filename)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExportNoSessions):
		response.NotFound(c, 16101, err.Error())
	case errors.Is(err, service.ErrExportGenerateFail):
		_ = c.Error(err)
		response.InternalError(c)
	default:
		handleCommonError(c, err)
	}
}
