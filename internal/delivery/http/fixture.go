package http

import (
	"golang-alerting/internal/dto"
	"golang-alerting/pkg/utils"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupFixtures(base *echo.Group) {
	base.POST("/v1/fixtures/reload", h.reloadFixtures)
}

// reloadFixtures clears cached fixtures so the next tick reads them from disk.
func (h *HttpAPIHandler) reloadFixtures(c echo.Context) error {
	req := new(dto.ReloadFixturesRequest)
	if err := c.Bind(req); err != nil {
		return h.badRequest(c, "invalid request body", nil)
	}
	for _, id := range req.TenantIDs {
		if !utils.ValidIdentifier(id) {
			return h.badRequest(c, "invalid tenant id", []string{id})
		}
	}

	h.service.ReloadFixtures(req.TenantIDs...)
	response := dto.NewSuccessResponse("Fixture cache cleared", req)
	return c.JSON(response.Code, response)
}
