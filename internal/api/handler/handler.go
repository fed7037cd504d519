package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"j-planner/backend/internal/service"
	pkgerrors "j-planner/backend/pkg/errors"
	"j-planner/backend/pkg/response"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth       *AuthHandler
	Course     *CourseHandler
	Constraint *ConstraintHandler
	Planning   *PlanningHandler
	Settings   *SettingsHandler
	Export     *ExportHandler
	Backup     *BackupHandler
	Command    *CommandHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Auth:       NewAuthHandler(svc.Auth),
		Course:     NewCourseHandler(svc.Course),
		Constraint: NewConstraintHandler(svc.Constraint),
		Planning:   NewPlanningHandler(svc.Planning),
		Settings:   NewSettingsHandler(svc.Settings),
		Export:     NewExportHandler(svc.Export),
		Backup:     NewBackupHandler(svc.Backup),
		Command:    NewCommandHandler(svc.Command),
	}
}

// handleCommonError 处理各模块共有的错误；未识别的错误按 500 返回
func handleCommonError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pkgerrors.ErrLockBusy):
		response.Conflict(c, 14001, err.Error())
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 14002, err.Error())
	case errors.Is(err, service.ErrInvalidDate):
		response.BadRequest(c, 10001, err.Error())
	default:
		_ = c.Error(err)
		response.InternalError(c)
	}
}

// bindFailed 统一的参数校验失败响应；请求体超过 BodyLimit 时返回 413
func bindFailed(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
		return
	}
	response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "参数校验失败", err.Error())
}
