package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"j-planner/backend/internal/command"
	"j-planner/backend/internal/dto"
	"j-planner/backend/internal/service"
	"j-planner/backend/pkg/response"
)

// CommandHandler 聊天指令 HTTP 处理器
type CommandHandler struct {
	commandSvc service.CommandService
}

// NewCommandHandler 创建 CommandHandler
func NewCommandHandler(commandSvc service.CommandService) *CommandHandler {
	return &CommandHandler{commandSvc: commandSvc}
}

// Execute 解析并执行一条聊天指令
// POST /api/v1/chat
func (h *CommandHandler) Execute(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	result, err := h.commandSvc.Execute(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleCommandError(c, err)
		return
	}

	response.OK(c, result)
}

func (h *CommandHandler) handleCommandError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, command.ErrUnknownCommand):
		response.ErrorWithDetails(c, http.StatusUnprocessableEntity, 18001, err.Error(), command.HelpText)
	case errors.Is(err, command.ErrMoveFormat), errors.Is(err, command.ErrDeleteFormat):
		response.ErrorWithDetails(c, http.StatusUnprocessableEntity, 18002, err.Error(), command.HelpText)
	case errors.Is(err, command.ErrInvalidDate), errors.Is(err, command.ErrInvalidHours):
		response.BadRequest(c, 18003, err.Error())
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
	case errors.Is(err, service.ErrInvalidHourRange):
		response.BadRequest(c, 13002, err.Error())
	default:
		handleCommonError(c, err)
	}
}
