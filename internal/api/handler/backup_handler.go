package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"j-planner/backend/internal/dto"
	"j-planner/backend/internal/service"
	"j-planner/backend/pkg/response"
)

// maxImportFileSize 上传导入文件的上限
const maxImportFileSize = 5 << 20

// BackupHandler JSON 导入导出与对象存储备份 HTTP 处理器
type BackupHandler struct {
	backupSvc service.BackupService
}

// NewBackupHandler 创建 BackupHandler
func NewBackupHandler(backupSvc service.BackupService) *BackupHandler {
	return &BackupHandler{backupSvc: backupSvc}
}

// ExportJSON 导出全部数据为 JSON 文件
// GET /api/v1/export/json
func (h *BackupHandler) ExportJSON(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	doc, err := h.backupSvc.Export(c.Request.Context(), userID)
	if err != nil {
		h.handleBackupError(c, err)
		return
	}

	filename := fmt.Sprintf("j-planner-export-%s.json", time.Now().Format(dateLayout))
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.JSON(http.StatusOK, doc)
}

// ImportJSON 导入 JSON，替换当前数据并重排
// POST /api/v1/import/json
//
// 支持 multipart/form-data（field="file"）或直接以 JSON 作为请求体
func (h *BackupHandler) ImportJSON(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var doc dto.ExportDocument
	if file, _, err := c.Request.FormFile("file"); err == nil {
		defer file.Close()
		body, err := io.ReadAll(io.LimitReader(file, maxImportFileSize))
		if err != nil {
			response.BadRequest(c, 17000, "读取上传文件失败")
			return
		}
		if err := binding.JSON.BindBody(body, &doc); err != nil {
			response.ErrorWithDetails(c, http.StatusBadRequest, 17001, "导入文件格式无效", err.Error())
			return
		}
	} else if err := c.ShouldBindJSON(&doc); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, 17001, "导入文件格式无效", err.Error())
		return
	}

	result, err := h.backupSvc.Import(c.Request.Context(), userID, &doc)
	if err != nil {
		h.handleBackupError(c, err)
		return
	}

	response.OK(c, result)
}

// CreateBackup 上传一份快照到对象存储
// POST /api/v1/backups
func (h *BackupHandler) CreateBackup(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	backup, err := h.backupSvc.Backup(c.Request.Context(), userID)
	if err != nil {
		h.handleBackupError(c, err)
		return
	}

	response.Created(c, backup)
}

// ListBackups 当前用户的快照列表
// GET /api/v1/backups
func (h *BackupHandler) ListBackups(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	list, err := h.backupSvc.ListBackups(c.Request.Context(), userID)
	if err != nil {
		h.handleBackupError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// RestoreBackup 从快照恢复
// POST /api/v1/backups/restore
func (h *BackupHandler) RestoreBackup(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.RestoreBackupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	result, err := h.backupSvc.Restore(c.Request.Context(), userID, req.Key)
	if err != nil {
		h.handleBackupError(c, err)
		return
	}

	response.OK(c, result)
}

func (h *BackupHandler) handleBackupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidBackup):
		response.ErrorWithDetails(c, http.StatusBadRequest, 17001, "导入文件格式无效", err.Error())
	case errors.Is(err, service.ErrBackupVersion):
		response.BadRequest(c, 17002, err.Error())
	case errors.Is(err, service.ErrBackupTooLarge):
		response.Error(c, http.StatusRequestEntityTooLarge, 17003, err.Error())
	case errors.Is(err, service.ErrBackupDisabled):
		response.ServiceUnavailable(c, 17004, err.Error())
	case errors.Is(err, service.ErrBackupNotFound):
		response.NotFound(c, 17005, err.Error())
	case errors.Is(err, service.ErrInvalidCatalog):
		response.BadRequest(c, 12006, err.Error())
	default:
		handleCommonError(c, err)
	}
}
