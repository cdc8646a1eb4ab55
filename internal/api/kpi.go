package api

import (
	"careplan/internal/dto"

	"github.com/gofiber/fiber/v2"
)

func (h *Handler) KPIOverview(c *fiber.Ctx) error {
	var query dto.KPIQuery
	if err := h.bindQuery(c, &query); err != nil {
		return err
	}
	out, err := h.kpi.Overview(c.UserContext(), query)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *Handler) KPIOrganizations(c *fiber.Ctx) error {
	out, err := h.kpi.Organizations(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(out)
}
