package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"j-planner/backend/internal/dto"
	"j-planner/backend/internal/service"
	"j-planner/backend/pkg/response"
)

// CourseHandler 课程与课时 HTTP 处理器
type CourseHandler struct {
	courseSvc service.CourseService
}

// NewCourseHandler 创建 CourseHandler
func NewCourseHandler(courseSvc service.CourseService) *CourseHandler {
	return &CourseHandler{courseSvc: courseSvc}
}

// CreateCourse 新增课程并重排
// POST /api/v1/courses
func (h *CourseHandler) CreateCourse(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	result, err := h.courseSvc.Create(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleCourseError(c, err)
		return
	}

	response.Created(c, result)
}

// ListCourses 课程列表
// GET /api/v1/courses
func (h *CourseHandler) ListCourses(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	list, err := h.courseSvc.List(c.Request.Context(), userID)
	if err != nil {
		h.handleCourseError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// GetCourse 课程详情
// GET /api/v1/courses/:id
func (h *CourseHandler) GetCourse(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	course, err := h.courseSvc.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.handleCourseError(c, err)
		return
	}

	response.OK(c, course)
}

// UpdateCourse 修改课程
// PUT /api/v1/courses/:id
func (h *CourseHandler) UpdateCourse(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.UpdateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	result, err := h.courseSvc.Update(c.Request.Context(), userID, c.Param("id"), &req)
	if err != nil {
		h.handleCourseError(c, err)
		return
	}

	response.OK(c, result)
}

// DeleteCourse 删除课程，?rebalance=true 时删除后重排
// DELETE /api/v1/courses/:id
func (h *CourseHandler) DeleteCourse(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var q dto.DeleteRequest
	if err := c.ShouldBindQuery(&q); err != nil {
		bindFailed(c, err)
		return
	}

	result, err := h.courseSvc.Delete(c.Request.Context(), userID, c.Param("id"), q.Rebalance)
	if err != nil {
		h.handleCourseError(c, err)
		return
	}

	response.OK(c, result)
}

// DeleteAllCourses 删除全部课程
// DELETE /api/v1/courses
func (h *CourseHandler) DeleteAllCourses(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.courseSvc.DeleteAll(c.Request.Context(), userID)
	if err != nil {
		h.handleCourseError(c, err)
		return
	}

	response.OK(c, result)
}

// DeleteSession 删除课时
// DELETE /api/v1/courses/:id/sessions/:sid
func (h *CourseHandler) DeleteSession(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var q dto.DeleteRequest
	if err := c.ShouldBindQuery(&q); err != nil {
		bindFailed(c, err)
		return
	}

	result, err := h.courseSvc.DeleteSession(c.Request.Context(), userID, c.Param("id"), c.Param("sid"), q.Rebalance)
	if err != nil {
		h.handleCourseError(c, err)
		return
	}

	response.OK(c, result)
}

// CompleteSession 标记课时完成
// PUT /api/v1/courses/:id/sessions/:sid/complete
func (h *CourseHandler) CompleteSession(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.CompleteSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	session, err := h.courseSvc.CompleteSession(c.Request.Context(), userID, c.Param("id"), c.Param("sid"), *req.Success)
	if err != nil {
		h.handleCourseError(c, err)
		return
	}

	response.OK(c, session)
}

// MoveSession 手动移动课时
// PUT /api/v1/courses/:id/sessions/:sid/move
func (h *CourseHandler) MoveSession(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.MoveSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	session, err := h.courseSvc.MoveSession(c.Request.Context(), userID, c.Param("id"), c.Param("sid"), req.Date)
	if err != nil {
		h.handleCourseError(c, err)
		return
	}

	response.OK(c, session)
}

func (h *CourseHandler) handleCourseError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCourseNotFound):
		response.NotFound(c, 12001, err.Error())
	case errors.Is(err, service.ErrSessionNotFound):
		response.NotFound(c, 12002, err.Error())
	case errors.Is(err, service.ErrSessionCompleted):
		response.Conflict(c, 12003, err.Error())
	case errors.Is(err, service.ErrMoveToSunday):
		response.BadRequest(c, 12004, err.Error())
	case errors.Is(err, service.ErrMoveConflict):
		response.Conflict(c, 12005, err.Error())
	case errors.Is(err, service.ErrInvalidCatalog):
		response.BadRequest(c, 12006, err.Error())
	default:
		handleCommonError(c, err)
	}
}
