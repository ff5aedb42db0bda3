package http

import (
	"golang-alerting/internal/dto"
	"time"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupExecutions(base *echo.Group) {
	executions := base.Group("/v1/executions")
	{
		executions.POST("", h.startExecution)
		executions.POST("/cleanup", h.cleanupExecutions)
		executions.GET("/:id", h.getExecution)
		executions.POST("/:id/cancel", h.cancelExecution)
	}
}

func (h *HttpAPIHandler) startExecution(c echo.Context) error {
	req := new(dto.StartExecutionRequest)
	if err := c.Bind(req); err != nil {
		return h.badRequest(c, "invalid request body", nil)
	}

	// validation happens inside the trigger so rejections are counted there
	result := h.service.StartExecution(c.Request().Context(), *req)
	message := "Execution accepted"
	if !result.Accepted {
		message = result.RejectionReason
	}
	response := dto.NewBaseResponse(statusForStart(result), message, result)
	return c.JSON(response.Code, response)
}

func (h *HttpAPIHandler) getExecution(c echo.Context) error {
	state, ok := h.service.ExecutionTrigger.GetExecution(c.Param("id"))
	if !ok {
		response := dto.NewNotFoundResponse("execution not found")
		return c.JSON(response.Code, response)
	}
	response := dto.NewSuccessResponse("Execution state", state)
	return c.JSON(response.Code, response)
}

func (h *HttpAPIHandler) cancelExecution(c echo.Context) error {
	id := c.Param("id")
	req := new(dto.CancelExecutionRequest)
	problems, err := h.bind(c, req)
	if err != nil {
		return h.badRequest(c, "invalid request body", nil)
	}
	if len(problems) > 0 {
		return h.badRequest(c, "invalid cancel request", problems)
	}

	if _, ok := h.service.ExecutionTrigger.GetExecution(id); !ok {
		response := dto.NewNotFoundResponse("execution not found")
		return c.JSON(response.Code, response)
	}

	cancelled := h.service.ExecutionTrigger.CancelExecution(c.Request().Context(), id, req.Reason, req.CancelledBy, h.service.Now(req.Now))
	result := dto.CancelExecutionResponse{ExecutionID: id, Cancelled: cancelled}
	if !cancelled {
		response := dto.NewConflictResponse("execution is already terminal", result)
		return c.JSON(response.Code, response)
	}
	response := dto.NewSuccessResponse("Execution cancelled", result)
	return c.JSON(response.Code, response)
}

func (h *HttpAPIHandler) cleanupExecutions(c echo.Context) error {
	req := new(dto.CleanupRequest)
	problems, err := h.bind(c, req)
	if err != nil {
		return h.badRequest(c, "invalid request body", nil)
	}
	if len(problems) > 0 {
		return h.badRequest(c, "invalid cleanup request", problems)
	}

	maxAge := h.cfg.Trigger.TerminalRetention
	if req.MaxAgeMs != nil {
		maxAge = time.Duration(*req.MaxAgeMs) * time.Millisecond
	}
	removed := h.service.ExecutionTrigger.CleanupTerminalExecutions(maxAge, h.service.Now(req.Now))
	response := dto.NewSuccessResponse("Terminal executions cleaned up", dto.CleanupResponse{Removed: removed})
	return c.JSON(response.Code, response)
}
