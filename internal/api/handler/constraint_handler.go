package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"j-planner/backend/internal/dto"
	"j-planner/backend/internal/service"
	"j-planner/backend/pkg/response"
)

// ConstraintHandler 占用时间 HTTP 处理器
type ConstraintHandler struct {
	constraintSvc service.ConstraintService
}

// NewConstraintHandler 创建 ConstraintHandler
func NewConstraintHandler(constraintSvc service.ConstraintService) *ConstraintHandler {
	return &ConstraintHandler{constraintSvc: constraintSvc}
}

// CreateConstraint 新增占用并重排
// POST /api/v1/constraints
func (h *ConstraintHandler) CreateConstraint(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.CreateConstraintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	result, err := h.constraintSvc.Add(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleConstraintError(c, err)
		return
	}

	response.Created(c, result)
}

// ListConstraints 占用列表，可按 from/to 过滤
// GET /api/v1/constraints
func (h *ConstraintHandler) ListConstraints(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.ListConstraintRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	list, err := h.constraintSvc.List(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleConstraintError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// DeleteConstraint 删除占用
// DELETE /api/v1/constraints/:id
func (h *ConstraintHandler) DeleteConstraint(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var q dto.DeleteRequest
	if err := c.ShouldBindQuery(&q); err != nil {
		bindFailed(c, err)
		return
	}

	result, err := h.constraintSvc.Delete(c.Request.Context(), userID, c.Param("id"), q.Rebalance)
	if err != nil {
		h.handleConstraintError(c, err)
		return
	}

	response.OK(c, result)
}

// ImportICS 导入日历中的忙碌事件
// POST /api/v1/constraints/import
//
// 支持两种方式：
//   - 文件上传: multipart/form-data, field="file"
//   - 订阅地址: application/json, body={"url": "..."}
func (h *ConstraintHandler) ImportICS(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	file, _, err := c.Request.FormFile("file")
	if err == nil {
		defer file.Close()
		resp, err := h.constraintSvc.ImportICS(c.Request.Context(), userID, file)
		if err != nil {
			h.handleConstraintError(c, err)
			return
		}
		response.Created(c, resp)
		return
	}

	var req dto.ImportICSURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req.URL = c.PostForm("url")
		if req.URL == "" {
			response.BadRequest(c, 13000, "请上传 ICS 文件或提供 ICS URL")
			return
		}
	}

	resp, err := h.constraintSvc.ImportICSFromURL(c.Request.Context(), userID, req.URL)
	if err != nil {
		h.handleConstraintError(c, err)
		return
	}
	response.Created(c, resp)
}

func (h *ConstraintHandler) handleConstraintError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrConstraintNotFound):
		response.NotFound(c, 13001, err.Error())
	case errors.Is(err, service.ErrInvalidHourRange):
		response.BadRequest(c, 13002, err.Error())
	case errors.Is(err, service.ErrICSInvalid):
		response.ErrorWithDetails(c, http.StatusBadRequest, 13003, "ICS 格式解析失败", err.Error())
	case errors.Is(err, service.ErrICSFetch):
		response.ErrorWithDetails(c, http.StatusBadRequest, 13004, "ICS URL 获取失败", err.Error())
	case errors.Is(err, service.ErrICSEmpty):
		response.UnprocessableEntity(c, 13005, err.Error())
	default:
		handleCommonError(c, err)
	}
}
