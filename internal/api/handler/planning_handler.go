package handler

import (
	"github.com/gin-gonic/gin"

	"j-planner/backend/internal/dto"
	"j-planner/backend/internal/service"
	"j-planner/backend/pkg/response"
)

// PlanningHandler 计划查询与重排 HTTP 处理器
type PlanningHandler struct {
	planningSvc service.PlanningService
}

// NewPlanningHandler 创建 PlanningHandler
func NewPlanningHandler(planningSvc service.PlanningService) *PlanningHandler {
	return &PlanningHandler{planningSvc: planningSvc}
}

// Rebalance 手动触发整体重排
// POST /api/v1/planning/rebalance
func (h *PlanningHandler) Rebalance(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.planningSvc.Rebalance(c.Request.Context(), userID)
	if err != nil {
		handleCommonError(c, err)
		return
	}

	response.OK(c, result)
}

// WeeklyPlan 周计划
// GET /api/v1/planning/week?week_offset=0
func (h *PlanningHandler) WeeklyPlan(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.WeeklyPlanRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	plan, err := h.planningSvc.WeeklyPlan(c.Request.Context(), userID, req.WeekOffset)
	if err != nil {
		handleCommonError(c, err)
		return
	}

	response.OK(c, plan)
}

// Today 今日课时
// GET /api/v1/planning/today
func (h *PlanningHandler) Today(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	today, err := h.planningSvc.Today(c.Request.Context(), userID)
	if err != nil {
		handleCommonError(c, err)
		return
	}

	response.OK(c, today)
}

// Stats 统计
// GET /api/v1/planning/stats
func (h *PlanningHandler) Stats(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	stats, err := h.planningSvc.Stats(c.Request.Context(), userID)
	if err != nil {
		handleCommonError(c, err)
		return
	}

	response.OK(c, stats)
}

// ListChangeLogs 课时变更日志（分页）
// GET /api/v1/planning/change-logs
func (h *PlanningHandler) ListChangeLogs(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.ChangeLogListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	list, total, err := h.planningSvc.ChangeLogs(c.Request.Context(), userID, &req)
	if err != nil {
		handleCommonError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}
