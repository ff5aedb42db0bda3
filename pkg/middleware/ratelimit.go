package middleware

import (
	"golang-alerting/pkg/common"
	"golang-alerting/pkg/ratelimit"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Response struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// TenantIdentifier keys rate limiting by tenant: the :tenant_id path
// parameter, then the X-Tenant-ID header, then the client IP.
func TenantIdentifier(c echo.Context) (string, error) {
	if id := c.Param("tenant_id"); id != "" {
		return "tenant:" + id, nil
	}
	if id := c.Request().Header.Get(common.HEADER_TENANT_ID); id != "" {
		return "tenant:" + id, nil
	}
	return "ip:" + c.RealIP(), nil
}

func NewRateLimiterMiddleware(store *ratelimit.LimiterStore, skipper middleware.Skipper) echo.MiddlewareFunc {
	if skipper == nil {
		skipper = middleware.DefaultSkipper
	}
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper:             skipper,
		Store:               store,
		IdentifierExtractor: TenantIdentifier,
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, Response{
				Status:  http.StatusForbidden,
				Message: "Access forbidden: Rate limiter error occurred",
			})
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return c.JSON(http.StatusTooManyRequests, Response{
				Status:  http.StatusTooManyRequests,
				Message: "Too many requests: Rate limit exceeded. Please try again later",
			})
		},
	})
}
