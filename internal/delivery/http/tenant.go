package http

import (
	"errors"
	"golang-alerting/internal/dto"
	"golang-alerting/internal/model"
	"golang-alerting/internal/repository"
	"golang-alerting/internal/service"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupTenants(base *echo.Group) {
	tenants := base.Group("/v1/tenants/:tenant_id")
	{
		tenants.POST("/tick", h.tick)
		tenants.POST("/run", h.run)
		tenants.GET("/history", h.history)
		tenants.GET("/history/summary", h.historySummary)
	}
}

func (h *HttpAPIHandler) tickInput(c echo.Context) (string, time.Time, service.TickOptions, []string, error) {
	tenantID, ok := h.tenantParam(c)
	if !ok {
		return "", time.Time{}, service.TickOptions{}, []string{"tenant_id: contains unsupported characters"}, nil
	}
	req := new(dto.TickRequest)
	problems, err := h.bind(c, req)
	if err != nil || len(problems) > 0 {
		return "", time.Time{}, service.TickOptions{}, problems, err
	}
	opts := service.TickOptions{
		MaxTriggers: req.MaxTriggers,
		DryRun:      req.DryRun,
		RequestedBy: req.RequestedBy,
	}
	return tenantID, h.service.Now(req.Now), opts, nil, nil
}

func (h *HttpAPIHandler) tick(c echo.Context) error {
	tenantID, now, opts, problems, err := h.tickInput(c)
	if err != nil {
		return h.badRequest(c, "invalid request body", nil)
	}
	if len(problems) > 0 {
		return h.badRequest(c, "invalid tick request", problems)
	}

	result := h.service.ScheduleRunner.TickTenant(c.Request().Context(), tenantID, now, opts)
	response := dto.NewSuccessResponse("Tick evaluated", result)
	return c.JSON(response.Code, response)
}

func (h *HttpAPIHandler) run(c echo.Context) error {
	tenantID, now, opts, problems, err := h.tickInput(c)
	if err != nil {
		return h.badRequest(c, "invalid request body", nil)
	}
	if len(problems) > 0 {
		return h.badRequest(c, "invalid run request", problems)
	}

	result := h.service.Run(c.Request().Context(), tenantID, now, opts)
	response := dto.NewSuccessResponse("Tick evaluated and candidates triggered", result)
	return c.JSON(response.Code, response)
}

func (h *HttpAPIHandler) history(c echo.Context) error {
	tenantID, ok := h.tenantParam(c)
	if !ok {
		return h.badRequest(c, "invalid tenant id", nil)
	}
	req := new(dto.HistoryQueryRequest)
	if err := c.Bind(req); err != nil {
		return h.badRequest(c, "invalid query parameters", nil)
	}
	query, problems := toHistoryQuery(req)
	if len(problems) > 0 {
		return h.badRequest(c, "invalid query parameters", problems)
	}

	page, err := h.service.History.FindRecentByTenant(c.Request().Context(), tenantID, query)
	if err != nil {
		return h.historyError(c, err)
	}
	response := dto.NewSuccessResponse("Execution history", page)
	return c.JSON(response.Code, response)
}

func (h *HttpAPIHandler) historySummary(c echo.Context) error {
	tenantID, ok := h.tenantParam(c)
	if !ok {
		return h.badRequest(c, "invalid tenant id", nil)
	}
	req := new(dto.SummaryRequest)
	if err := c.Bind(req); err != nil {
		return h.badRequest(c, "invalid query parameters", nil)
	}
	if req.WindowMs < 0 {
		return h.badRequest(c, "invalid query parameters", []string{"window_ms: must not be negative"})
	}
	at, err := parseInstant(req.Now)
	if err != nil {
		return h.badRequest(c, "invalid query parameters", []string{"now: must be an RFC 3339 timestamp"})
	}

	window := time.Duration(req.WindowMs) * time.Millisecond
	if window == 0 {
		window = h.cfg.Runner.DefaultWindow
	}
	if window <= 0 {
		window = model.DefaultExecutionWindow
	}

	summary, err := h.service.History.GetExecutionSummary(c.Request().Context(), tenantID, window, h.service.Now(at))
	if err != nil {
		return h.historyError(c, err)
	}
	response := dto.NewSuccessResponse("Execution history summary", summary)
	return c.JSON(response.Code, response)
}

func (h *HttpAPIHandler) historyError(c echo.Context, err error) error {
	var queryErr *repository.HistoryQueryError
	if errors.As(err, &queryErr) && queryErr.Cause == nil {
		return h.badRequest(c, queryErr.Message, nil)
	}
	response := dto.NewInternalErrorResponse("failed to read execution history")
	return c.JSON(response.Code, response)
}

func toHistoryQuery(req *dto.HistoryQueryRequest) (repository.HistoryQuery, []string) {
	var problems []string
	query := repository.HistoryQuery{
		Limit:  req.Limit,
		Offset: req.Offset,
		Order:  repository.SortOrder(strings.ToLower(req.Order)),
	}

	start, err := parseInstant(req.StartTime)
	if err != nil {
		problems = append(problems, "start_time: must be an RFC 3339 timestamp")
	}
	query.StartTime = start

	end, err := parseInstant(req.EndTime)
	if err != nil {
		problems = append(problems, "end_time: must be an RFC 3339 timestamp")
	}
	query.EndTime = end

	if req.Status != "" {
		status := model.ExecutionStatus(strings.ToUpper(req.Status))
		if !status.IsTerminal() {
			problems = append(problems, "status: must be one of COMPLETED FAILED CANCELLED")
		}
		query.Status = status
	}
	if req.DryRun != "" {
		dryRun, err := strconv.ParseBool(req.DryRun)
		if err != nil {
			problems = append(problems, "dry_run: must be a boolean")
		}
		query.DryRun = &dryRun
	}
	return query, problems
}
