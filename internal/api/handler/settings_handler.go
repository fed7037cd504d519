package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"j-planner/backend/internal/dto"
	"j-planner/backend/internal/service"
	"j-planner/backend/pkg/response"
)

// SettingsHandler 排程偏好 HTTP 处理器
type SettingsHandler struct {
	settingsSvc service.SettingsService
}

// NewSettingsHandler 创建 SettingsHandler
func NewSettingsHandler(settingsSvc service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settingsSvc: settingsSvc}
}

// GetSettings 当前偏好
// GET /api/v1/settings
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	settings, err := h.settingsSvc.Get(c.Request.Context(), userID)
	if err != nil {
		h.handleSettingsError(c, err)
		return
	}

	response.OK(c, settings)
}

// UpdateSettings 修改偏好并重排
// PUT /api/v1/settings
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	result, err := h.settingsSvc.Update(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleSettingsError(c, err)
		return
	}

	response.OK(c, result)
}

// ListCatalogs 可选间隔方案
// GET /api/v1/settings/catalogs
func (h *SettingsHandler) ListCatalogs(c *gin.Context) {
	response.OK(c, gin.H{"list": h.settingsSvc.Catalogs()})
}

func (h *SettingsHandler) handleSettingsError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidWorkingHours):
		response.BadRequest(c, 15001, err.Error())
	case errors.Is(err, service.ErrInvalidLunchBreak):
		response.BadRequest(c, 15002, err.Error())
	case errors.Is(err, service.ErrInvalidMaxHours):
		response.BadRequest(c, 15003, err.Error())
	case errors.Is(err, service.ErrInvalidCatalog):
		response.BadRequest(c, 15004, err.Error())
	default:
		handleCommonError(c, err)
	}
}
