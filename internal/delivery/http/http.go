package http

import (
	"context"
	"golang-alerting/config"
	"golang-alerting/internal/dto"
	"golang-alerting/internal/model"
	"golang-alerting/internal/service"
	"golang-alerting/pkg/logger"
	"golang-alerting/pkg/metrics"
	"golang-alerting/pkg/middleware"
	"golang-alerting/pkg/ratelimit"
	"golang-alerting/pkg/utils"
	"net/http"
	"time"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
)

type HttpAPIHandler struct {
	echo      *echo.Echo
	cfg       *config.Config
	validator *goValidator.Validate
	service   *service.Service
	metrics   *metrics.Collector
	limiter   *ratelimit.LimiterStore
}

// NewHttpAPIHandler wires the API routes. metrics and limiter may be nil.
func NewHttpAPIHandler(
	ctx context.Context,
	echo *echo.Echo,
	cfg *config.Config,
	validator *goValidator.Validate,
	service *service.Service,
	collector *metrics.Collector,
	limiter *ratelimit.LimiterStore,
) *HttpAPIHandler {
	return &HttpAPIHandler{
		echo:      echo,
		cfg:       cfg,
		validator: validator,
		service:   service,
		metrics:   collector,
		limiter:   limiter,
	}
}

func (h *HttpAPIHandler) SetupRoutes() {
	if h.metrics != nil {
		h.echo.GET("/metrics", echo.WrapHandler(h.metrics.Handler()))
	}

	base := h.echo.Group("/api", echoMiddleware.RequestID(), requestContext)
	if h.limiter != nil {
		base.Use(middleware.NewRateLimiterMiddleware(h.limiter, nil))
	}
	h.SetupTenants(base)
	h.SetupExecutions(base)
	h.SetupFixtures(base)
}

// requestContext tags every log line written while serving the request.
func requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		ctx := logger.ContextWithFields(req.Context(),
			logger.StringField("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			logger.StringField("route", c.Path()),
		)
		c.SetRequest(req.WithContext(ctx))
		return next(c)
	}
}

func (h *HttpAPIHandler) badRequest(c echo.Context, message string, problems []string) error {
	response := dto.NewBadRequestResponse(message, problems...)
	return c.JSON(response.Code, response)
}

// bind decodes the request into req and validates it.
func (h *HttpAPIHandler) bind(c echo.Context, req interface{}) ([]string, error) {
	if err := c.Bind(req); err != nil {
		return nil, err
	}
	if err := h.validator.Struct(req); err != nil {
		return utils.ValidationMessages(err), nil
	}
	return nil, nil
}

func (h *HttpAPIHandler) tenantParam(c echo.Context) (string, bool) {
	tenantID := c.Param("tenant_id")
	return tenantID, utils.ValidIdentifier(tenantID)
}

// parseInstant accepts RFC 3339 timestamps. Empty input yields nil.
func parseInstant(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}

func statusForStart(res dto.StartResult) int {
	switch {
	case res.Accepted:
		return http.StatusOK
	case len(res.ValidationErrors) > 0:
		return http.StatusBadRequest
	case res.Status == model.ExecutionStatusFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusConflict
	}
}
